package auth

import (
	"strings"

	"github.com/google/uuid"
)

// googleNamespace 用于把 Google subject 映射为稳定的身份 ID。
var googleNamespace = uuid.MustParse("6b0d1f4e-3c1a-5d7e-9f42-6a1e2b3c4d5e")

// NewIdentityID 为密码身份生成随机 ID。
func NewIdentityID() string { return uuid.NewString() }

// GoogleIdentityID 对同一个 Google 账号始终返回同一个 ID。
func GoogleIdentityID(subject string) string {
	return uuid.NewSHA1(googleNamespace, []byte("google:"+strings.TrimSpace(subject))).String()
}
