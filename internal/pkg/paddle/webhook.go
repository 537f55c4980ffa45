package paddle

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	paddlesdk "github.com/PaddleHQ/paddle-go-sdk/v4"
)

const SignatureHeader = "Paddle-Signature"

var (
	ErrNoSecret         = errors.New("paddle: webhook secret is not configured")
	ErrMissingSignature = errors.New("paddle: missing signature")
	ErrInvalidSignature = errors.New("paddle: invalid signature")
	ErrStaleSignature   = errors.New("paddle: signature timestamp outside tolerance")
)

// Verifier 校验 Paddle-Signature: ts=<unix>;h1=<hex hmac>。
// 轮换密钥期间 Paddle 会发送多个 h1，任意一个通过即可
type Verifier struct {
	sdk       *paddlesdk.WebhookVerifier
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier secret 为空时 Verify 总是失败
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	v := &Verifier{tolerance: tolerance, now: time.Now}
	if secret != "" {
		v.sdk = paddlesdk.NewWebhookVerifier(secret)
	}
	return v
}

func (v *Verifier) Verify(header string, body []byte) error {
	if v.sdk == nil {
		return ErrNoSecret
	}
	if header == "" {
		return ErrMissingSignature
	}

	ts, signatures := parseSignature(header)
	if ts == "" || len(signatures) == 0 {
		return ErrInvalidSignature
	}

	if v.tolerance > 0 {
		sec, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return ErrInvalidSignature
		}
		diff := v.now().Sub(time.Unix(sec, 0))
		if diff < 0 {
			diff = -diff
		}
		if diff > v.tolerance {
			return ErrStaleSignature
		}
	}

	for _, sig := range signatures {
		ok, err := v.sdk.Verify(signedRequest(ts, sig, body))
		if err == nil && ok {
			return nil
		}
	}
	return ErrInvalidSignature
}

func parseSignature(header string) (string, []string) {
	var ts string
	var signatures []string
	for _, part := range strings.Split(header, ";") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "ts":
			ts = kv[1]
		case "h1":
			signatures = append(signatures, kv[1])
		}
	}
	return ts, signatures
}

// signedRequest SDK 按请求校验，这里把单个 h1 还原成一次回调请求
func signedRequest(ts, sig string, body []byte) *http.Request {
	req, _ := http.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, "ts="+ts+";h1="+sig)
	return req
}

// Sign 计算 h1 的值，用于本地构造回调
func Sign(secret []byte, ts string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts))
	mac.Write([]byte(":"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseEvent 校验通过后解码事件
func ParseEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, err
	}
	if event.EventID == "" || event.EventType == "" {
		return nil, errors.New("paddle: event_id and event_type are required")
	}
	return &event, nil
}
