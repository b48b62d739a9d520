package identity

import (
	"fmt"

	hashids "github.com/speps/go-hashids"
)

const receiptMinLength = 8

// Receipts turns attempt serials into short codes users can quote back when
// grading was deferred. They are not secret.
type Receipts struct {
	h *hashids.HashID
}

func NewReceipts(salt string) (*Receipts, error) {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = receiptMinLength
	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, fmt.Errorf("init receipt encoder: %w", err)
	}
	return &Receipts{h: h}, nil
}

func (r *Receipts) Encode(serial int64) (string, error) {
	code, err := r.h.EncodeInt64([]int64{serial})
	if err != nil {
		return "", fmt.Errorf("encode receipt: %w", err)
	}
	return code, nil
}

func (r *Receipts) Decode(code string) (int64, error) {
	values, err := r.h.DecodeInt64WithError(code)
	if err != nil {
		return 0, fmt.Errorf("decode receipt %q: %w", code, err)
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("decode receipt %q: expected one value, got %d", code, len(values))
	}
	return values[0], nil
}
