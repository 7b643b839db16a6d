package analyzer

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// probeResult is what the well-known file probes found for one origin.
type probeResult struct {
	hasSitemap bool
	hasRobots  bool
	robots     *robotstxt.RobotsData
}

func origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

// probe checks /sitemap.xml and /robots.txt on the page's origin. Results
// are cached per origin.
func (a *Analyzer) probe(ctx context.Context, u *url.URL) (probeResult, bool) {
	key := origin(u)
	if res, found := a.probes.get(key); found {
		return res, true
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var (
		res probeResult
		wg  sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		resp, err := a.get(ctx, key+"/sitemap.xml")
		if err != nil {
			return
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, a.maxPageBytes))
		res.hasSitemap = resp.StatusCode == http.StatusOK
	}()
	go func() {
		defer wg.Done()
		resp, err := a.get(ctx, key+"/robots.txt")
		if err != nil {
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return
		}
		res.hasRobots = true
		// an unparsable file still counts as present
		if robots, err := robotstxt.FromResponse(resp); err == nil {
			res.robots = robots
		}
	}()
	wg.Wait()

	// a cancelled probe says nothing about the origin
	if ctx.Err() == nil {
		a.probes.set(key, res)
	}
	return res, false
}

func (a *Analyzer) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", a.userAgent)
	return a.client.Do(req)
}
