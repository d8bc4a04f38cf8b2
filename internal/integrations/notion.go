package integrations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog/log"
)

// ErrNotionUnauthorized is returned when Notion rejects the integration secret.
var ErrNotionUnauthorized = errors.New("notion rejected the integration token")

// maxNotionDepth bounds recursion into nested blocks.
const maxNotionDepth = 3

// BlockLister is the part of the Notion block API the importer reads.
type BlockLister interface {
	GetChildren(ctx context.Context, id notionapi.BlockID, pagination *notionapi.Pagination) (*notionapi.GetChildrenResponse, error)
}

// NotionImporter extracts the plain text of a Notion page so it can be added
// to a tenant's knowledge base.
type NotionImporter struct {
	newLister func(token string) BlockLister
}

// NewNotionImporter creates an importer that talks to the Notion API.
func NewNotionImporter() *NotionImporter {
	return &NotionImporter{newLister: func(token string) BlockLister {
		return notionapi.NewClient(notionapi.Token(token)).Block
	}}
}

// NewNotionImporterWith creates an importer over a custom block source.
func NewNotionImporterWith(newLister func(token string) BlockLister) *NotionImporter {
	return &NotionImporter{newLister: newLister}
}

// ImportPage returns the page text, one block per line. Headings, paragraphs,
// list items, quotes, callouts, to-dos, toggles and code are kept; other block
// types are skipped.
func (n *NotionImporter) ImportPage(ctx context.Context, token, pageID string) (string, error) {
	token, pageID = strings.TrimSpace(token), strings.TrimSpace(pageID)
	if token == "" || pageID == "" {
		return "", fmt.Errorf("notion token and page id are required")
	}
	lister := n.newLister(token)

	var lines []string
	if err := n.collect(ctx, lister, notionapi.BlockID(pageID), 0, &lines); err != nil {
		var notionErr *notionapi.Error
		if errors.As(err, &notionErr) && notionErr.Status == 401 {
			return "", ErrNotionUnauthorized
		}
		return "", fmt.Errorf("failed to read notion page %s: %w", pageID, err)
	}
	log.Info().Str("page_id", pageID).Int("blocks", len(lines)).Msg("[NotionImporter] ImportPage: page read")
	return strings.Join(lines, "\n"), nil
}

func (n *NotionImporter) collect(ctx context.Context, lister BlockLister, id notionapi.BlockID, depth int, lines *[]string) error {
	var cursor notionapi.Cursor
	for {
		resp, err := lister.GetChildren(ctx, id, &notionapi.Pagination{StartCursor: cursor, PageSize: 100})
		if err != nil {
			return err
		}
		for _, block := range resp.Results {
			if text := blockText(block); text != "" {
				*lines = append(*lines, text)
			}
			if depth+1 >= maxNotionDepth {
				continue
			}
			if hc, ok := block.(interface{ GetHasChildren() bool }); ok && hc.GetHasChildren() {
				if err := n.collect(ctx, lister, block.GetID(), depth+1, lines); err != nil {
					return err
				}
			}
		}
		if !resp.HasMore || resp.NextCursor == "" {
			return nil
		}
		cursor = notionapi.Cursor(resp.NextCursor)
	}
}

func plain(rt []notionapi.RichText) string {
	var b strings.Builder
	for _, r := range rt {
		b.WriteString(r.PlainText)
	}
	return strings.TrimSpace(b.String())
}

func blockText(block notionapi.Block) string {
	switch b := block.(type) {
	case *notionapi.ParagraphBlock:
		return plain(b.Paragraph.RichText)
	case *notionapi.Heading1Block:
		return prefixed("# ", plain(b.Heading1.RichText))
	case *notionapi.Heading2Block:
		return prefixed("## ", plain(b.Heading2.RichText))
	case *notionapi.Heading3Block:
		return prefixed("### ", plain(b.Heading3.RichText))
	case *notionapi.BulletedListItemBlock:
		return prefixed("- ", plain(b.BulletedListItem.RichText))
	case *notionapi.NumberedListItemBlock:
		return prefixed("- ", plain(b.NumberedListItem.RichText))
	case *notionapi.ToDoBlock:
		return prefixed("- ", plain(b.ToDo.RichText))
	case *notionapi.ToggleBlock:
		return plain(b.Toggle.RichText)
	case *notionapi.QuoteBlock:
		return prefixed("> ", plain(b.Quote.RichText))
	case *notionapi.CalloutBlock:
		return plain(b.Callout.RichText)
	case *notionapi.CodeBlock:
		return plain(b.Code.RichText)
	}
	return ""
}

func prefixed(prefix, text string) string {
	if text == "" {
		return ""
	}
	return prefix + text
}
