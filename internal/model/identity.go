package model

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// 只去掉不承载页面身份的跟踪参数（另有 utm_* 前缀）；ref、src 等在部分站点标识职位，保留。
var trackingParams = map[string]struct{}{
	"trk": {}, "trackingid": {}, "refid": {}, "gclid": {}, "fbclid": {},
}

// CanonicalURL 规范化 URL 作为去重键：小写 scheme/host，去掉 fragment、跟踪参数与结尾斜杠。
// 无法解析的输入原样（去空白）返回。
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if _, ok := trackingParams[lower]; ok || strings.HasPrefix(lower, "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

// DeriveOwnerIdentity 由稳定的档案属性生成不透明的用户键。
func DeriveOwnerIdentity(p Profile) string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(p.FullName)),
		strings.ToLower(strings.TrimSpace(p.BranchOfService)),
		strings.TrimSpace(p.ServiceStartDate),
		strings.TrimSpace(p.UserID),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:16])
}
