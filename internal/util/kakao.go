package util

import "strings"

const (
	KakaoSeeMorePadding = 500
	KakaoZeroWidthSpace = "\u200b"
)

// 카카오톡 '전체보기' 접힘을 만들기 위해 제로폭 문자를 instruction 뒤에 채운다.
func ApplyKakaoSeeMorePadding(text, instruction string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + len(instruction) + KakaoSeeMorePadding*len(KakaoZeroWidthSpace) + 1)
	b.WriteString(strings.TrimSpace(instruction))
	b.WriteString(strings.Repeat(KakaoZeroWidthSpace, KakaoSeeMorePadding))
	if !strings.HasPrefix(text, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(text)
	return b.String()
}

// 첫 줄의 헤더와 뒤따르는 빈 줄을 제거한다.
func StripLeadingHeader(text, header string) string {
	if strings.TrimSpace(text) == "" || strings.TrimSpace(header) == "" || !strings.HasPrefix(text, header) {
		return text
	}
	rest := strings.TrimPrefix(text, header)
	for _, nl := range []string{"\r\n\r\n", "\n\n", "\r\n", "\n"} {
		if strings.HasPrefix(rest, nl) {
			return strings.TrimPrefix(rest, nl)
		}
	}
	return rest
}

// 헤더를 접힘 위 안내문으로 옮기고 본문만 접힘 아래에 둔다.
func ApplySeeMoreWithHeader(text, header, fallback, suffix string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	instruction := strings.TrimSpace(header)
	if instruction != "" {
		instruction += suffix
	} else {
		instruction = strings.TrimSpace(fallback)
	}
	return ApplyKakaoSeeMorePadding(StripLeadingHeader(text, header), instruction)
}
