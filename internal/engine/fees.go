package engine

// FeePolicy is the platform cut applied to every submission.
type FeePolicy struct {
	RateBps   uint16 `json:"rateBps"` // basis points, 100 = 1%
	Recipient string `json:"recipient"`
}

// Validate rejects rates above 100% and empty recipients.
func (f FeePolicy) Validate() error {
	if f.RateBps > 10_000 || f.Recipient == "" {
		return ErrInvalidFeeConfig
	}
	return nil
}

// Split divides a gross amount into the platform fee and the effective
// amount that enters play. fee + effective == gross always holds; the fee
// rounds down, so the player keeps the remainder.
func (f FeePolicy) Split(gross uint64) (fee, effective uint64) {
	fee = gross * uint64(f.RateBps) / 10_000
	return fee, gross - fee
}
