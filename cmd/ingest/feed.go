package ingest

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/urfave/cli/v2"

	"github.com/ashishroygit/medical-chatbot-enterprise/manifest"
)

func Feed(ctx *cli.Context) error {
	p, err := newPipeline(ctx)
	if err != nil {
		return err
	}

	feedURL := ctx.String("url")
	fp := gofeed.NewParser()
	feed, err := fp.ParseURLWithContext(feedURL, ctx.Context)
	if err != nil {
		return fmt.Errorf("failed to process feed from %s: %w", feedURL, err)
	}

	maxItems := ctx.Int("max-items")
	processed := 0
	for _, item := range feed.Items {
		if processed >= maxItems {
			break
		}

		src := feedSource(item)
		if p.known(src.GUID) {
			fmt.Printf("skipping existing item %s\n", src.GUID)
			continue
		}
		processed++

		if err := p.ingest(ctx.Context, src); err != nil {
			return err
		}
	}

	fmt.Printf("Indexed %d new items from %s\n", processed, feed.Title)
	return nil
}

func feedSource(item *gofeed.Item) source {
	guid := item.GUID
	if guid == "" {
		guid = item.Link
	}

	body := item.Content
	if strings.TrimSpace(body) == "" {
		body = item.Description
	}

	return source{
		SourceData: manifest.SourceData{
			Kind:      "feed",
			Title:     item.Title,
			Link:      item.Link,
			GUID:      guid,
			Published: item.Published,
		},
		Text: item.Title + "\n\n" + htmlToText(body),
	}
}

// htmlToText drops markup from feed bodies, which are usually HTML fragments.
func htmlToText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
