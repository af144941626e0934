package ride

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const passcodeLength = 4

var passcodeSpan = big.NewInt(9000)

// newPasscode returns a uniformly random code in [1000, 9999].
func newPasscode() (string, error) {
	n, err := rand.Int(rand.Reader, passcodeSpan)
	if err != nil {
		return "", fmt.Errorf("generate passcode: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}
