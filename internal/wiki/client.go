package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/alvmarrod/wiki-weaver/internal/config"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

// Recorder receives the outcome of every remote call
type Recorder interface {
	RecordLinkFetch(duration time.Duration, ok bool)
	RecordClassification(ok bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordLinkFetch(time.Duration, bool) {}
func (nopRecorder) RecordClassification(bool)           {}

// Client talks to the encyclopedia's action API. It serves as both the
// article source and the topic classifier. Every failure is logged and
// replaced by the empty answer; nothing is retried.
type Client struct {
	apiURL            string
	policy            Policy
	mainNamespaceOnly bool
	maxLinkPages      int
	collector         *colly.Collector
	recorder          Recorder
}

// NewClient creates a client from configuration. recorder may be nil.
func NewClient(cfg *config.Config, recorder Recorder) (*Client, error) {
	policy, err := ParsePolicy(cfg.TopicPolicy)
	if err != nil {
		return nil, err
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	c := &Client{
		apiURL:            cfg.APIURL,
		policy:            policy,
		mainNamespaceOnly: cfg.MainNamespaceOnly,
		maxLinkPages:      cfg.MaxLinkPages,
		recorder:          recorder,
	}

	if err := c.setupColly(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// setupColly configures the shared collector every request is cloned from
func (c *Client) setupColly(cfg *config.Config) error {
	c.collector = colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)

	c.collector.SetRequestTimeout(time.Duration(cfg.RequestTimeoutMs) * time.Millisecond)

	// Limit parallelism
	if err := c.collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.ConcurrentWorkers,
	}); err != nil {
		return fmt.Errorf("failed to set request limit: %w", err)
	}
	return nil
}

// getJSON performs one API query bound to ctx and decodes the body into out
func (c *Client) getJSON(ctx context.Context, params url.Values, out any) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")

	// A clone shares the HTTP backend and limits but carries its own callbacks
	col := c.collector.Clone()
	col.Context = ctx

	var body []byte
	col.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	if err := col.Visit(c.apiURL + "?" + params.Encode()); err != nil {
		return err
	}
	if body == nil {
		return fmt.Errorf("empty response")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	return nil
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type linksResponse struct {
	Continue map[string]string `json:"continue"`
	Error    *apiError         `json:"error"`
	Query    struct {
		Pages []struct {
			Title   string `json:"title"`
			Missing bool   `json:"missing"`
			Links   []struct {
				NS    int    `json:"ns"`
				Title string `json:"title"`
			} `json:"links"`
		} `json:"pages"`
	} `json:"query"`
}

type categoriesResponse struct {
	Error *apiError `json:"error"`
	Query struct {
		Pages []struct {
			Title      string `json:"title"`
			Missing    bool   `json:"missing"`
			Categories []struct {
				Title string `json:"title"`
			} `json:"categories"`
		} `json:"pages"`
	} `json:"query"`
}

// FetchLinks returns the outbound link titles of an article, following
// continuation for up to max_link_pages pages. Requests are bound to ctx.
// Any failure, cancellation included, yields nil.
func (c *Client) FetchLinks(ctx context.Context, title string) []string {
	logrus.Debugf("Fetching links from article: %s", title)
	start := time.Now()

	params := url.Values{}
	params.Set("action", "query")
	params.Set("titles", title)
	params.Set("prop", "links")
	params.Set("pllimit", "max")
	if c.mainNamespaceOnly {
		params.Set("plnamespace", "0")
	}

	var links []string
	for page := 0; page < c.maxLinkPages; page++ {
		var resp linksResponse
		err := c.getJSON(ctx, params, &resp)
		if err == nil && resp.Error != nil {
			err = fmt.Errorf("api error %s: %s", resp.Error.Code, resp.Error.Info)
		}
		if err != nil {
			logrus.Warnf("Error fetching links from %s: %v", title, err)
			c.recorder.RecordLinkFetch(time.Since(start), false)
			return nil
		}

		for _, p := range resp.Query.Pages {
			for _, link := range p.Links {
				links = append(links, link.Title)
			}
		}

		if len(resp.Continue) == 0 {
			break
		}
		for key, value := range resp.Continue {
			params.Set(key, value)
		}
		if page+1 == c.maxLinkPages {
			logrus.Debugf("Link pagination for %s stopped after %d pages", title, c.maxLinkPages)
		}
	}

	c.recorder.RecordLinkFetch(time.Since(start), true)
	logrus.Debugf("Found %d links in article: %s", len(links), title)
	return links
}

// IsAdmissible reports whether the article passes the topic policy. The
// request is bound to ctx. Any failure yields false.
func (c *Client) IsAdmissible(ctx context.Context, title string) bool {
	logrus.Debugf("Checking categories for: %s", title)

	params := url.Values{}
	params.Set("action", "query")
	params.Set("titles", title)
	params.Set("prop", "categories")
	params.Set("cllimit", "max")

	var resp categoriesResponse
	err := c.getJSON(ctx, params, &resp)
	if err == nil && resp.Error != nil {
		err = fmt.Errorf("api error %s: %s", resp.Error.Code, resp.Error.Info)
	}
	if err != nil {
		logrus.Warnf("Error checking categories for %s: %v", title, err)
		c.recorder.RecordClassification(false)
		return false
	}
	c.recorder.RecordClassification(true)

	var categories []string
	for _, p := range resp.Query.Pages {
		for _, category := range p.Categories {
			categories = append(categories, category.Title)
		}
	}

	admissible := c.policy.Admit(categories)
	logrus.Debugf("Article %q admissible=%t under %s policy", title, admissible, c.policy.Name())
	return admissible
}
