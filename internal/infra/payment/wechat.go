// Package payment authenticates WeChat Pay APIv3 notifications and
// decrypts their enclosed transaction resource.
package payment

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"health-entitlement-engine/internal/pkg/config"
	"health-entitlement-engine/internal/pkg/errs"
	"health-entitlement-engine/internal/usecase/shared"
)

const algorithmAESGCM = "AEAD_AES_256_GCM"

// WechatVerifier checks notification signatures against the platform
// certificate and opens AEAD_AES_256_GCM resources with the APIv3 key.
type WechatVerifier struct {
	cert       *x509.Certificate
	certSerial string
	apiV3Key   []byte
}

var _ shared.PaymentVerifier = (*WechatVerifier)(nil)

func NewWechatVerifier(cfg config.WechatPayConfig) (*WechatVerifier, error) {
	cert, err := loadCertificate(cfg.PlatformCert)
	if err != nil {
		return nil, errs.Wrap(err, "failed to load platform certificate")
	}
	if len(cfg.APIv3Key) != 32 {
		return nil, errs.New("APIv3 key must be exactly 32 bytes")
	}
	return &WechatVerifier{
		cert:       cert,
		certSerial: cfg.CertSerial,
		apiV3Key:   []byte(cfg.APIv3Key),
	}, nil
}

// loadCertificate accepts either a literal PEM block or a path to one.
func loadCertificate(source string) (*x509.Certificate, error) {
	raw := []byte(source)
	if !strings.Contains(source, "-----BEGIN") {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read certificate file: %w", err)
		}
		raw = data
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in certificate source")
	}
	return x509.ParseCertificate(block.Bytes)
}

// VerifySignature authenticates a notification. The signed message is
// "timestamp\nnonce\nbody\n" and the signature header is base64.
func (v *WechatVerifier) VerifySignature(headers shared.WebhookHeaders, body []byte) error {
	if headers.Timestamp == "" || headers.Nonce == "" || headers.Signature == "" || headers.Serial == "" {
		return errs.Mark(errs.New("missing signature headers"), shared.ErrVerifyFailed)
	}
	if headers.Serial != v.certSerial {
		return errs.Mark(errs.New("certificate serial mismatch"), shared.ErrVerifyFailed)
	}

	signature, err := base64.StdEncoding.DecodeString(headers.Signature)
	if err != nil {
		return errs.Mark(errs.Wrap(err, "signature is not valid base64"), shared.ErrVerifyFailed)
	}

	message := fmt.Sprintf("%s\n%s\n%s\n", headers.Timestamp, headers.Nonce, body)
	digest := sha256.Sum256([]byte(message))

	switch pub := v.cert.PublicKey.(type) {
	case *rsa.PublicKey:
		if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature); err != nil {
			return errs.Mark(errs.Wrap(err, "signature verification failed"), shared.ErrVerifyFailed)
		}
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(pub, digest[:], signature) {
			return errs.Mark(errs.New("signature verification failed"), shared.ErrVerifyFailed)
		}
	default:
		return errs.Mark(errs.New("unsupported certificate key type"), shared.ErrVerifyFailed)
	}
	return nil
}

// DecryptResource opens the notification's encrypted transaction data.
// Authentication failures map to ErrVerifyFailed; an unexpected
// algorithm maps to ErrUnsupportedAlgorithm.
func (v *WechatVerifier) DecryptResource(res shared.EncryptedResource) ([]byte, error) {
	if res.Algorithm != algorithmAESGCM {
		return nil, errs.Mark(
			errs.New(fmt.Sprintf("algorithm %q is not supported", res.Algorithm)),
			shared.ErrUnsupportedAlgorithm,
		)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(res.Ciphertext)
	if err != nil {
		return nil, errs.Mark(errs.Wrap(err, "ciphertext is not valid base64"), shared.ErrVerifyFailed)
	}

	block, err := aes.NewCipher(v.apiV3Key)
	if err != nil {
		return nil, errs.Wrap(err, "failed to init cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errs.Wrap(err, "failed to init GCM")
	}

	plaintext, err := aead.Open(nil, []byte(res.Nonce), ciphertext, []byte(res.AssociatedData))
	if err != nil {
		return nil, errs.Mark(errs.Wrap(err, "resource decryption failed"), shared.ErrVerifyFailed)
	}
	return plaintext, nil
}
