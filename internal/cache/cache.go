package cache

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	gocache "github.com/patrickmn/go-cache"
	_ "golang.org/x/image/webp"
)

var (
	// In-memory cache of decoded images keyed by source hash
	imageCache *gocache.Cache

	// HTTP client with timeout
	httpClient *http.Client

	once sync.Once
)

// Init prepares the decoded-image cache. ttl <= 0 falls back to 10 minutes.
func Init(ttl time.Duration) {
	once.Do(func() {
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		imageCache = gocache.New(ttl, 2*ttl)

		// HTTP client with timeout and connection pooling
		transport := &http.Transport{
			MaxIdleConns:        200,
			MaxIdleConnsPerHost: 50,
			IdleConnTimeout:     90 * time.Second,
		}
		httpClient = &http.Client{
			Timeout:   5 * time.Second,
			Transport: transport,
		}
	})
}

// ============ IMAGE LOADING ============

// GetImage resolves an image source to a decoded image. Sources may be
// http(s) URLs, data URLs, raw base64 payloads or local file paths. Decoded
// results are cached by source hash.
func GetImage(source string) (image.Image, error) {
	if source == "" {
		return nil, fmt.Errorf("empty image source")
	}

	Init(0)

	hash := md5.Sum([]byte(source))
	cacheKey := "img:" + hex.EncodeToString(hash[:])

	if cached, found := imageCache.Get(cacheKey); found {
		return cached.(image.Image), nil
	}

	img, err := fetchAndDecode(source)
	if err != nil {
		return nil, err
	}

	imageCache.Set(cacheKey, img, gocache.DefaultExpiration)
	return img, nil
}

func fetchAndDecode(source string) (image.Image, error) {
	switch {
	case strings.HasPrefix(source, "data:"):
		return decodeDataURL(source)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return downloadAndDecode(source)
	default:
		if _, err := os.Stat(source); err == nil {
			img, err := imaging.Open(source)
			if err != nil {
				return nil, fmt.Errorf("failed to decode image file %s: %w", source, err)
			}
			return img, nil
		}
		// Last resort: treat the source as a bare base64 payload.
		data, err := base64.StdEncoding.DecodeString(source)
		if err != nil {
			return nil, fmt.Errorf("unrecognized image source")
		}
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 image: %w", err)
		}
		return img, nil
	}
}

func decodeDataURL(source string) (image.Image, error) {
	comma := strings.IndexByte(source, ',')
	if comma < 0 {
		return nil, fmt.Errorf("malformed data URL")
	}
	payload := source[comma+1:]

	var data []byte
	var err error
	if strings.Contains(source[:comma], ";base64") {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode data URL payload: %w", err)
		}
	} else {
		data = []byte(payload)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URL image: %w", err)
	}
	return img, nil
}

func downloadAndDecode(url string) (image.Image, error) {
	resp, err := httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image from %s: bad status %s", url, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image from %s: %w", url, err)
	}
	return img, nil
}

// Preload resolves multiple sources concurrently and returns how many were
// cached successfully.
func Preload(sources []string) int {
	var ok int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	// Limit concurrent downloads
	sem := make(chan struct{}, 20)

	for _, source := range sources {
		if source == "" {
			continue
		}

		wg.Add(1)
		go func(s string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if _, err := GetImage(s); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}(source)
	}

	wg.Wait()
	return int(ok)
}

// ============ MAINTENANCE ============

// ClearCache drops all cached images.
func ClearCache() {
	Init(0)
	imageCache.Flush()
}

// Stats returns cache statistics.
func Stats() map[string]interface{} {
	Init(0)
	return map[string]interface{}{
		"cached_images": imageCache.ItemCount(),
	}
}
