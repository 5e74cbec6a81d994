// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"fmt"
	"math"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/trailhound/challenger/hound"
	"github.com/trailhound/challenger/messaging"
)

// Canned notice bodies. Welcome and tracking confirmations are plain;
// activity and milestone notices are built by the format helpers below.
const (
	welcomeNotice = "Hello! Please say `challenge track <url>` to start tracking a challenge in this room."

	trackingNoticeFormat = "Excellent! I am tracking %s."

	permissionNotice = "Sorry, I need permission to send state events in this room before I can track a challenge."
)

// activityEmoji maps tracker activity types to an emoji for the notice
// body. Types are matched lowercase; unknown types fall through to the
// levitating default.
var activityEmoji = map[string]string{
	"run":         "🏃",
	"virtualrun":  "👨‍💻🏃",
	"ride":        "🚴",
	"cycle":       "🚴",
	"cycling":     "🚴",
	"virtualride": "👨‍💻🚴",
	"walk":        "🚶",
	"hike":        "🚶",
	"virtualwalk": "👨‍💻🚶",
	"virtualhike": "👨‍💻🚶",
	"skateboard":  "🛹",
}

const defaultEmoji = "🕴️"

// emojiForActivity returns the emoji for a tracker activity type.
func emojiForActivity(activityType string) string {
	if emoji, ok := activityEmoji[strings.ToLower(activityType)]; ok {
		return emoji
	}
	return defaultEmoji
}

// formatKilometers renders a distance in meters as kilometers with two
// decimal places, e.g. "12.35".
func formatKilometers(meters float64) string {
	return fmt.Sprintf("%.2f", meters/1000)
}

// activityNoticeBody builds the markdown body announcing one activity.
func activityNoticeBody(activity hound.Activity) string {
	return fmt.Sprintf("🎉 **%s** completed a %skm %s %s (%s)",
		activity.User.FirstName,
		formatKilometers(activity.Distance),
		emojiForActivity(activity.ActivityType),
		activity.ActivityType,
		activity.ActivityName,
	)
}

// milestoneNoticeBody builds the markdown body announcing a crossed
// distance milestone. percent is the whole-number completion
// percentage, totalMeters the team's summed distance.
func milestoneNoticeBody(percent int, totalMeters float64) string {
	return fmt.Sprintf("✨ The team has now completed %d%% of the target, covering a total distance of %skm!",
		percent,
		formatKilometers(totalMeters),
	)
}

// renderInline converts a one-line markdown body to inline HTML for
// the formatted_body field. Goldmark wraps output in a paragraph;
// Matrix notices want bare inline markup, so the wrapper is stripped.
func renderInline(markdown string) string {
	var buffer strings.Builder
	if err := goldmark.Convert([]byte(markdown), &buffer); err != nil {
		// Fall back to the raw text. Conversion only fails on writer
		// errors, which strings.Builder never produces.
		return markdown
	}
	html := strings.TrimSpace(buffer.String())
	html = strings.TrimPrefix(html, "<p>")
	html = strings.TrimSuffix(html, "</p>")
	return html
}

// noticeContent builds an m.notice message with an HTML rendering of
// the markdown body.
func noticeContent(markdownBody string) messaging.MessageContent {
	return messaging.NewNotice(markdownBody, renderInline(markdownBody))
}

// activityNoticeContent builds the full activity notice including the
// reserved metadata fields that restart bootstrap reads back.
//
// The extra fields ride alongside the standard message keys, so the
// content is a map rather than the typed MessageContent struct.
func activityNoticeContent(activity hound.Activity) map[string]any {
	body := activityNoticeBody(activity)
	return map[string]any{
		"msgtype":               "m.notice",
		"body":                  body,
		"format":                messaging.FormatHTML,
		"formatted_body":        renderInline(body),
		ActivityIDField:        activity.ID,
		ActivityDistanceField:  int(math.Round(activity.Distance)),
		ActivityElevationField: int(math.Round(activity.Elevation)),
		ActivityDurationField:  int(math.Round(activity.Duration)),
		ActivityUserField: ActivityUserRef{
			Name: activity.User.FullName,
			ID:   activity.User.ID,
		},
	}
}
