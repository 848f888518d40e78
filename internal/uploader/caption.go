package uploader

import (
	"strconv"
	"strings"
	"time"
)

const maxCaptionLength = 1024

// Policy controls how a caption is derived for the target deliveries,
// per spec §4.7's caption policy on copy.
type Policy struct {
	RemoveCaptions bool
	Template       string // "" means preserve the source caption unchanged
	Attribution    string // appended if it fits within maxCaptionLength, "" disables it
}

// Render applies policy to the source caption for one message, producing
// the caption to use on the first-target send (and thereby, by copy
// semantics, on every subsequent target).
func Render(policy Policy, originalCaption string, date time.Time, sourceChatID int64, sourceMessageID int) string {
	if policy.RemoveCaptions {
		return ""
	}

	caption := originalCaption
	if policy.Template != "" {
		caption = substitute(policy.Template, originalCaption, date, sourceChatID, sourceMessageID)
	}

	if policy.Attribution == "" {
		return caption
	}
	withAttribution := caption
	if withAttribution != "" {
		withAttribution += "\n"
	}
	withAttribution += policy.Attribution
	if len(withAttribution) <= maxCaptionLength {
		return withAttribution
	}
	return caption
}

func substitute(template, originalCaption string, date time.Time, sourceChatID int64, sourceMessageID int) string {
	out := template
	out = strings.ReplaceAll(out, "{original_caption}", originalCaption)
	out = strings.ReplaceAll(out, "{date}", date.Format(time.RFC3339))
	out = strings.ReplaceAll(out, "{source_chat_id}", strconv.FormatInt(sourceChatID, 10))
	out = strings.ReplaceAll(out, "{source_message_id}", strconv.Itoa(sourceMessageID))
	return out
}
