package integrations

import (
	"context"
	"errors"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	pages map[string][]*notionapi.GetChildrenResponse
	err   error
	calls int
}

func (f *fakeLister) GetChildren(_ context.Context, id notionapi.BlockID, p *notionapi.Pagination) (*notionapi.GetChildrenResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	pages := f.pages[string(id)]
	idx := 0
	if p != nil && p.StartCursor != "" {
		idx = 1
	}
	if idx >= len(pages) {
		return &notionapi.GetChildrenResponse{}, nil
	}
	return pages[idx], nil
}

func rt(s string) []notionapi.RichText {
	return []notionapi.RichText{{PlainText: s}}
}

func TestImportPageCollectsTextAcrossPages(t *testing.T) {
	lister := &fakeLister{pages: map[string][]*notionapi.GetChildrenResponse{
		"page-1": {
			{
				Results: []notionapi.Block{
					&notionapi.Heading1Block{Heading1: notionapi.Heading{RichText: rt("Pricing")}},
					&notionapi.ParagraphBlock{Paragraph: notionapi.Paragraph{RichText: rt("Plans start at $99.")}},
				},
				HasMore:    true,
				NextCursor: "c1",
			},
			{
				Results: []notionapi.Block{
					&notionapi.BulletedListItemBlock{BulletedListItem: notionapi.ListItem{RichText: rt("Kitchen remodels")}},
					&notionapi.ParagraphBlock{Paragraph: notionapi.Paragraph{RichText: rt("  ")}},
				},
			},
		},
	}}
	imp := NewNotionImporterWith(func(token string) BlockLister {
		assert.Equal(t, "secret", token)
		return lister
	})

	text, err := imp.ImportPage(context.Background(), "secret", "page-1")
	require.NoError(t, err)
	assert.Equal(t, "# Pricing\nPlans start at $99.\n- Kitchen remodels", text)
	assert.Equal(t, 2, lister.calls)
}

func TestImportPageErrors(t *testing.T) {
	imp := NewNotionImporterWith(func(string) BlockLister {
		return &fakeLister{err: &notionapi.Error{Status: 401, Code: "unauthorized", Message: "API token is invalid."}}
	})
	_, err := imp.ImportPage(context.Background(), "bad", "page-1")
	assert.ErrorIs(t, err, ErrNotionUnauthorized)

	imp = NewNotionImporterWith(func(string) BlockLister {
		return &fakeLister{err: errors.New("connection reset")}
	})
	_, err = imp.ImportPage(context.Background(), "token", "page-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotionUnauthorized)

	_, err = imp.ImportPage(context.Background(), "", "page-1")
	assert.Error(t, err)
}
