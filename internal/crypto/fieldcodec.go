package crypto

// FieldCipher applies transparent field-level encryption at the persistence
// adapter boundary: repositories encode allow-listed columns before writing
// and decode them after reading.
type FieldCipher struct {
	key []byte
}

func NewFieldCipher(secret string) *FieldCipher {
	return &FieldCipher{key: DeriveKey(secret)}
}

// EncryptField encrypts a single field value with a fresh IV. A nil input
// stays nil so optional columns pass through untouched.
func (c *FieldCipher) EncryptField(plain *string) (*string, error) {
	if plain == nil {
		return nil, nil
	}

	stored, err := Encrypt(c.key, *plain)
	if err != nil {
		return nil, err
	}

	return &stored, nil
}

// DecryptField decodes a stored field value. Any failure (wrong key, corrupt
// data, malformed format) yields nil: the value is unavailable, and reads
// must keep working.
func (c *FieldCipher) DecryptField(stored *string) *string {
	if stored == nil {
		return nil
	}

	plain, err := Decrypt(c.key, *stored)
	if err != nil {
		return nil
	}

	return &plain
}
