package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// Client talks to the YouTube Data API v3 for track metadata lookup.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Video is the subset of a video resource tracks are built from.
type Video struct {
	ID           string
	Title        string
	ChannelTitle string
	ThumbnailURL string
	Duration     int64 // seconds
}

type videoListResponse struct {
	Items []videoResource `json:"items"`
}

type videoResource struct {
	ID             string              `json:"id"`
	Snippet        videoSnippet        `json:"snippet"`
	ContentDetails videoContentDetails `json:"contentDetails"`
}

type videoSnippet struct {
	Title        string                    `json:"title"`
	ChannelTitle string                    `json:"channelTitle"`
	Thumbnails   map[string]videoThumbnail `json:"thumbnails"`
}

type videoThumbnail struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type videoContentDetails struct {
	Duration string `json:"duration"`
}

type searchListResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

// GetVideo looks up a single video. It returns (nil, nil) when the id does
// not exist.
func (c *Client) GetVideo(ctx context.Context, videoID string) (*Video, error) {
	videos, err := c.listVideos(ctx, []string{videoID})
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, nil
	}
	return &videos[0], nil
}

// Search returns candidate videos for a free-text query, with full metadata.
func (c *Client) Search(ctx context.Context, query string) ([]Video, error) {
	params := url.Values{}
	params.Add("part", "snippet")
	params.Add("type", "video")
	params.Add("maxResults", "10")
	params.Add("q", query)
	params.Add("key", c.apiKey)

	var searchResp searchListResponse
	if err := c.get(ctx, "/search?"+params.Encode(), &searchResp); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(searchResp.Items))
	for _, item := range searchResp.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	return c.listVideos(ctx, ids)
}

func (c *Client) listVideos(ctx context.Context, ids []string) ([]Video, error) {
	params := url.Values{}
	params.Add("part", "snippet,contentDetails")
	params.Add("id", strings.Join(ids, ","))
	params.Add("key", c.apiKey)

	var listResp videoListResponse
	if err := c.get(ctx, "/videos?"+params.Encode(), &listResp); err != nil {
		return nil, err
	}

	videos := make([]Video, 0, len(listResp.Items))
	for _, item := range listResp.Items {
		videos = append(videos, Video{
			ID:           item.ID,
			Title:        item.Snippet.Title,
			ChannelTitle: cleanTitle(item.Snippet.ChannelTitle),
			ThumbnailURL: item.Snippet.bestThumbnail(),
			Duration:     parseISODuration(item.ContentDetails.Duration),
		})
	}
	return videos, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("youtube: request failed with status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// bestThumbnail picks the largest thumbnail variant YouTube provides.
func (s videoSnippet) bestThumbnail() string {
	for _, key := range []string{"maxres", "standard", "high", "medium", "default"} {
		if t, ok := s.Thumbnails[key]; ok {
			return t.URL
		}
	}
	return ""
}

// cleanTitle strips the "- Topic" suffix auto-generated music channels carry.
func cleanTitle(title string) string {
	return strings.TrimSpace(strings.ReplaceAll(title, "- Topic", ""))
}

// parseISODuration converts an ISO-8601 duration like "PT3M12S" to seconds.
// Malformed input yields 0.
func parseISODuration(d string) int64 {
	d = strings.TrimPrefix(d, "P")
	var total int64
	var num strings.Builder
	inTime := false
	for _, r := range d {
		switch {
		case r >= '0' && r <= '9':
			num.WriteRune(r)
		case r == 'T':
			inTime = true
			num.Reset()
		default:
			v, err := strconv.ParseInt(num.String(), 10, 64)
			num.Reset()
			if err != nil {
				continue
			}
			switch r {
			case 'D':
				total += v * 86400
			case 'H':
				total += v * 3600
			case 'M':
				if inTime {
					total += v * 60
				}
			case 'S':
				total += v
			}
		}
	}
	return total
}
