package ingest

import (
	"context"
	"fmt"
	"github.com/OpenTransitTools/transitdelay/business/data/gtfsrt"
	"github.com/OpenTransitTools/transitdelay/foundation/httpclient"
	"log"
	"net/http"
	"net/url"
)

// FetchError is returned when the vehicle position feed could not be retrieved or decoded.
// The cycle that produced it is skipped
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching vehicle positions failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// feedFetcher retrieves and decodes the gtfs-rt vehicle position feed
type feedFetcher struct {
	log    *log.Logger
	client *http.Client
	url    string
	apiKey string
}

func makeFeedFetcher(log *log.Logger, client *http.Client, url string, apiKey string) *feedFetcher {
	return &feedFetcher{
		log:    log,
		client: client,
		url:    url,
		apiKey: apiKey,
	}
}

// fetch makes a single request for the feed. Network, status and decoding failures are all returned as *FetchError
func (f *feedFetcher) fetch(ctx context.Context) (*gtfsrt.FeedSnapshot, error) {
	params := url.Values{}
	params.Set("key", f.apiKey)
	body, err := httpclient.RetrieveBytes(ctx, f.client, f.url, params)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	snapshot, err := gtfsrt.Decode(body)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	f.log.Printf("received feed with %d entities, %d bytes\n", len(snapshot.Entities), len(body))
	return snapshot, nil
}
