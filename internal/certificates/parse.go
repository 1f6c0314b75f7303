package certificates

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"
)

// Parse accepts the first CERTIFICATE block of a PEM file or raw DER and
// returns the parsed certificate and its DER bytes. Other PEM blocks, such as
// a leading private key, are skipped.
func Parse(data []byte) (*x509.Certificate, []byte, error) {
	der := data
	if block, rest := pem.Decode(data); block != nil {
		for block != nil && block.Type != "CERTIFICATE" {
			block, rest = pem.Decode(rest)
		}
		if block == nil {
			return nil, nil, fmt.Errorf("%w: no CERTIFICATE block in PEM", ErrInvalidInput)
		}
		der = block.Bytes
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return cert, der, nil
}

// Fingerprint is the colon-free lowercase hex SHA-256 of the DER encoding.
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

func serialHex(cert *x509.Certificate) string {
	if cert.SerialNumber == nil {
		return ""
	}
	return strings.ToUpper(cert.SerialNumber.Text(16))
}
