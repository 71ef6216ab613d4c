package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	deviceIDKey        = "deviceID"
	DeviceIDCookieName = "device_id"
	DeviceIDHeader     = "X-Device-ID"

	deviceCookieMaxAge = 365 * 24 * time.Hour
)

var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// ValidDeviceID 判断设备 id 能否安全地出现在存储 key 与频道名中。
func ValidDeviceID(id string) bool {
	return deviceIDPattern.MatchString(id)
}

// DeviceIDMiddleware 确定请求所属的设备：先读 Cookie，再读 X-Device-ID，
// 都没有（或格式非法）时生成新的 id 并写回 Cookie。
func DeviceIDMiddleware(cookieDomain string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(DeviceIDCookieName)
		if !ValidDeviceID(id) {
			id = strings.TrimSpace(c.GetHeader(DeviceIDHeader))
		}
		if !ValidDeviceID(id) {
			id = uuid.NewString()
		}

		http.SetCookie(c.Writer, &http.Cookie{
			Name:     DeviceIDCookieName,
			Value:    id,
			MaxAge:   int(deviceCookieMaxAge.Seconds()),
			Path:     "/",
			Secure:   IsHTTPS(c),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Domain:   strings.TrimSpace(cookieDomain),
		})
		c.Header(DeviceIDHeader, id)
		c.Set(deviceIDKey, id)
		c.Next()
	}
}

// GetDeviceID 从上下文中取出设备 id。
func GetDeviceID(c *gin.Context) string {
	if value, ok := c.Get(deviceIDKey); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}

// IsHTTPS 判断请求是否经由 HTTPS（包括反向代理转发）。
func IsHTTPS(c *gin.Context) bool {
	if c.Request == nil {
		return false
	}
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(c.Request.Header.Get("X-Forwarded-Proto"), "https")
}
