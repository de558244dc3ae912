// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/olegiv/ocms-metricsync/internal/model"
)

// MaxErrorRunes bounds the error text carried by a failure message.
const MaxErrorRunes = 500

var printer = message.NewPrinter(language.Korean)

// SuccessMessage summarises a completed run.
func SuccessMessage(date model.Date, action model.UpsertResult, m model.DailyMetrics) string {
	h := m.Headline()

	var b strings.Builder
	b.WriteString("<b>✅ 일일 지표 동기화 완료</b>\n")
	b.WriteString(printer.Sprintf("날짜: %s (%s)\n", Escape(date.String()), Escape(string(action))))
	b.WriteString(printer.Sprintf("방문자: %d\n", h.Visitors))
	b.WriteString(printer.Sprintf("페이지뷰: %d\n", h.Pageviews))
	b.WriteString(printer.Sprintf("평균 체류시간: %d초\n", h.AvgDuration))
	b.WriteString(printer.Sprintf("이탈률: %.1f%%\n", h.BounceRate))
	b.WriteString(printer.Sprintf("전화 클릭: %d / CTA 클릭: %d / 폼 제출: %d", h.PhoneClick, h.CTAClick, h.FormSubmit))
	if len(m.TrafficSources) > 0 {
		top := m.TrafficSources[0]
		b.WriteString(printer.Sprintf("\n주요 유입: %s (%.1f%%)", Escape(top.Name), top.Percent))
	}
	return b.String()
}

// FailureMessage reports a failed run for date with the error text cut to
// MaxErrorRunes.
func FailureMessage(date model.Date, err error) string {
	detail := "unknown error"
	if err != nil {
		detail = Truncate(err.Error(), MaxErrorRunes)
	}

	var b strings.Builder
	b.WriteString("<b>❌ 일일 지표 동기화 실패</b>\n")
	b.WriteString("날짜: " + Escape(date.String()) + "\n")
	b.WriteString("오류: <code>" + Escape(detail) + "</code>")
	return b.String()
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
