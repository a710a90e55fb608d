package user

import (
	"crypto/rand"
	"math/big"
)

const tempPasswordLen = 16

var (
	lowerChars   = "abcdefghijkmnopqrstuvwxyz"
	upperChars   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digitChars   = "23456789"
	specialChars = "!@#$%*-_+="
	allChars     = lowerChars + upperChars + digitChars + specialChars
)

// GenerateTemporaryPassword returns a random password holding at least one char of each class,
// so it passes the password policy. Look-alike chars (l, I, O, 0, 1) are left out.
func GenerateTemporaryPassword() (string, error) {
	pwd := make([]byte, 0, tempPasswordLen)
	for _, set := range []string{lowerChars, upperChars, digitChars, specialChars} {
		c, err := randChar(set)
		if err != nil {
			return "", err
		}
		pwd = append(pwd, c)
	}
	for len(pwd) < tempPasswordLen {
		c, err := randChar(allChars)
		if err != nil {
			return "", err
		}
		pwd = append(pwd, c)
	}

	// Fisher-Yates
	for i := len(pwd) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		pwd[i], pwd[j.Int64()] = pwd[j.Int64()], pwd[i]
	}
	return string(pwd), nil
}

func randChar(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, err
	}
	return set[n.Int64()], nil
}
