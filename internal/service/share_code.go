package service

import (
	"fmt"

	"devshelf/internal/models"

	"github.com/speps/go-hashids/v2"
)

const shareCodeMinLength = 8

// ShareCodec turns blog ids into short opaque codes for share links.
type ShareCodec struct {
	h *hashids.HashID
}

// NewShareCodec builds a codec salted with salt.
func NewShareCodec(salt string) (*ShareCodec, error) {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = shareCodeMinLength
	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, fmt.Errorf("share codec: %w", err)
	}
	return &ShareCodec{h: h}, nil
}

// Encode returns the share code for id.
func (c *ShareCodec) Encode(id uint) string {
	code, err := c.h.EncodeInt64([]int64{int64(id)})
	if err != nil {
		return ""
	}
	return code
}

// Decode maps a share code back to a blog id. Malformed codes are NOT_FOUND.
func (c *ShareCodec) Decode(code string) (uint, error) {
	ids, err := c.h.DecodeInt64WithError(code)
	if err != nil || len(ids) != 1 || ids[0] <= 0 {
		return 0, models.NewNotFoundError("Blog", code)
	}
	return uint(ids[0]), nil
}
