package tma

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mirixhq/mirixcore/pkg/dispatch"
	"github.com/mirixhq/mirixcore/pkg/model"
)

// assemblePrompt builds the structured multimodal payload handed to the
// dispatcher: images grouped by source label (remote references as
// attachments, local files read and inlined), a voice-segment summary line
// when any message carried audio, the batch's text messages in timestamp
// order, the spliced pending conversation transcript, and a trailing
// directive that names the active dispatch mode.
func assemblePrompt(ready []readyMessage, conversation []model.ConversationPair, mode dispatch.Mode) dispatch.Prompt {
	var b strings.Builder
	var attachments []dispatch.Attachment

	bySource := groupImagesBySource(ready)
	sourceNames := make([]string, 0, len(bySource))
	for name := range bySource {
		sourceNames = append(sourceNames, name)
	}
	sort.Strings(sourceNames)

	for _, name := range sourceNames {
		fmt.Fprintf(&b, "## Images from %s\n", name)
		for _, img := range bySource[name] {
			fmt.Fprintf(&b, "Timestamp: %s\n", img.timestamp)
			switch img.ref.Type {
			case model.ImageRefRemote:
				b.WriteString("- " + img.ref.Remote.URI + "\n")
				attachments = append(attachments, dispatch.Attachment{Kind: "remote", URI: img.ref.Remote.URI})
			case model.ImageRefLocal:
				data, err := os.ReadFile(img.ref.Local.Path)
				if err != nil {
					b.WriteString("- [unreadable local file: " + img.ref.Local.Path + "]\n")
					continue
				}
				mimeType := guessImageMimeType(img.ref.Local.Path)
				b.WriteString("- [inline: " + filepath.Base(img.ref.Local.Path) + "]\n")
				attachments = append(attachments, dispatch.Attachment{Kind: "inline", Data: data, MimeType: mimeType})
			}
		}
		b.WriteString("\n")
	}

	audioCount := 0
	for _, rm := range ready {
		if rm.original.AudioSegments != nil {
			audioCount += rm.original.AudioSegments.Count
		}
	}
	if audioCount > 0 {
		fmt.Fprintf(&b, "## Voice\nThis batch includes %d transcribed audio segment(s).\n\n", audioCount)
	}

	b.WriteString("## Messages\n")
	for _, rm := range ready {
		text := ""
		if rm.original.Text != nil {
			text = *rm.original.Text
		}
		fmt.Fprintf(&b, "[%s] %s\n", rm.original.Timestamp, text)
	}

	if len(conversation) > 0 {
		b.WriteString("\n## Pending conversation\n")
		for _, pair := range conversation {
			fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", pair.UserTurn, pair.AssistantTurn)
		}
	}

	b.WriteString("\n## Directive\n")
	if mode == dispatch.ModeDirect {
		b.WriteString("Extract and file this batch's contents into your assigned memory type.\n")
	} else {
		b.WriteString("Route this batch's contents to the appropriate memory types.\n")
	}

	return dispatch.Prompt{Text: b.String(), Attachments: attachments}
}

func groupImagesBySource(ready []readyMessage) map[string][]resolvedImage {
	out := make(map[string][]resolvedImage)
	for _, rm := range ready {
		for _, img := range rm.images {
			out[img.source] = append(out[img.source], img)
		}
	}
	return out
}

var imageMimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

func guessImageMimeType(path string) string {
	if mt, ok := imageMimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "application/octet-stream"
}
