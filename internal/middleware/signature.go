package middleware

import (
    "bytes"
    "crypto/hmac"
    "crypto/sha256"
    "encoding/base64"
    "io"
    "net/http"

    "github.com/labstack/echo/v4"
)

// SignatureHeader carries the webhook's HMAC-SHA256 signature, base64
// encoded over the raw request body, as sent by the order event source.
const SignatureHeader = "X-Webhook-Signature"

// VerifySignature returns middleware that authenticates webhook
// deliveries with an HMAC-SHA256 signature over the raw body.  The body
// is read in full for verification and then restored so handlers can
// bind it normally.  Requests with a missing or mismatched signature
// receive 401; the comparison is constant-time.
func VerifySignature(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            given := c.Request().Header.Get(SignatureHeader)
            if given == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing signature"})
            }
            body, err := io.ReadAll(c.Request().Body)
            if err != nil {
                return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
            }
            c.Request().Body = io.NopCloser(bytes.NewReader(body))

            mac := hmac.New(sha256.New, []byte(secret))
            mac.Write(body)
            want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
            if !hmac.Equal([]byte(given), []byte(want)) {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
            }
            return next(c)
        }
    }
}

// Sign computes the signature value for a payload.  Exported for tests
// and for local tooling that replays webhook deliveries.
func Sign(secret string, body []byte) string {
    mac := hmac.New(sha256.New, []byte(secret))
    mac.Write(body)
    return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
