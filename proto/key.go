package proto

import "fmt"

// ValidateKey checks that key satisfies the protocol constraints: 1 to 250
// bytes of printable ASCII (0x21-0x7e), which excludes spaces, control
// characters and DEL. Returns an InvalidKeyError describing the violation.
func ValidateKey(key string) error {
	if len(key) < MinKeyLength {
		return &InvalidKeyError{Message: "key is empty"}
	}

	if len(key) > MaxKeyLength {
		return &InvalidKeyError{Message: fmt.Sprintf("key exceeds maximum length of %d bytes", MaxKeyLength)}
	}

	for i := 0; i < len(key); i++ {
		if key[i] < 0x21 || key[i] > 0x7e {
			return &InvalidKeyError{Message: fmt.Sprintf("key contains forbidden byte 0x%02x at position %d", key[i], i)}
		}
	}

	return nil
}
