package middleware

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// encryptedBody is the wire shape of an encrypted request: both fields are
// base64, the nonce must decode to the 12 bytes AES-GCM expects.
type encryptedBody struct {
	Encrypted string `json:"encrypted"`
	Nonce     string `json:"nonce"`
}

// NewDecrypt builds middleware that decrypts AES-256-GCM encrypted POST
// bodies on the configured paths and replaces the request body with the
// decrypted JSON.  The key is base64 and must decode to exactly 32 bytes.
// With no paths configured the middleware is a no-op and the key is not
// required.
func NewDecrypt(b64Key string, paths []string) (echo.MiddlewareFunc, error) {
	if len(paths) == 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }, nil
	}
	if b64Key == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY not set but decrypt paths are configured")
	}
	key, err := base64.StdEncoding.DecodeString(b64Key)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be base64-encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must decode to exactly 32 bytes for AES-256-GCM, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	pathSet := make(map[string]bool, len(paths))
	for _, p := range paths {
		pathSet[p] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			if r.Method != http.MethodPost || !pathSet[r.URL.Path] {
				return next(c)
			}

			raw, err := io.ReadAll(r.Body)
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
			}
			var body encryptedBody
			if err := json.Unmarshal(raw, &body); err != nil || body.Encrypted == "" || body.Nonce == "" {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing 'encrypted' or 'nonce' field"})
			}
			ciphertext, err := base64.StdEncoding.DecodeString(body.Encrypted)
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid base64 encoding in 'encrypted'"})
			}
			nonce, err := base64.StdEncoding.DecodeString(body.Nonce)
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid base64 encoding in 'nonce'"})
			}
			if len(nonce) != gcm.NonceSize() {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid nonce length (must be 12 bytes)"})
			}

			plain, err := gcm.Open(nil, nonce, ciphertext, nil)
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "decryption failed"})
			}
			if !json.Valid(plain) {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "decrypted payload is not valid JSON"})
			}

			// Hand the decrypted JSON to the handler as if it arrived in
			// the clear.
			r.Body = io.NopCloser(bytes.NewReader(plain))
			r.ContentLength = int64(len(plain))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			r.Header.Set("Content-Length", strconv.Itoa(len(plain)))
			return next(c)
		}
	}, nil
}
