package util

import "strings"

const (
	KakaoSeeMorePadding = 500
	KakaoZeroWidthSpace = "\u200b"
)

// SeeMore는 header를 미리보기에 남기고 body를 카카오톡 '전체보기' 뒤로 접는다.
// 빈 body는 접지 않고 header만 돌려준다.
func SeeMore(header, body string) string {
	header = strings.TrimSpace(header)
	body = strings.TrimLeft(body, "\r\n")
	if strings.TrimSpace(body) == "" {
		return header
	}

	var b strings.Builder
	b.Grow(len(header) + len(KakaoZeroWidthSpace)*KakaoSeeMorePadding + len(body) + 1)
	b.WriteString(header)
	b.WriteString(strings.Repeat(KakaoZeroWidthSpace, KakaoSeeMorePadding))
	b.WriteByte('\n')
	b.WriteString(body)
	return b.String()
}
