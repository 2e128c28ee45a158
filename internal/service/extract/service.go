package extract

//go:generate $MOCKGEN -source=service.go -destination=mocks/service_mock.go

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/oshokin/media-grabber/internal/client/ytdlp"
	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/constants"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/model"
	"github.com/oshokin/media-grabber/internal/utils"
)

const (
	// ExternalFormatID is the format id of the synthetic descriptor returned for external-downloader URLs.
	ExternalFormatID = "spotdl"
	// externalFormatBitrate is the bitrate advertised by the synthetic descriptor.
	externalFormatBitrate = 320
	// externalFormatTitle is the title of listings served by the external downloader.
	externalFormatTitle = "Streaming service track or playlist"
)

// ErrInvalidURL indicates that the URL is missing or not an http(s) URL.
var ErrInvalidURL = errors.New("a valid http(s) url is required")

// Service lists the downloadable formats of media URLs.
type Service interface {
	// ListFormats returns the deduplicated, sorted and truncated formats of url.
	ListFormats(ctx context.Context, url string) (*model.FormatListing, error)
	// IsExternal reports whether url is handled by the external downloader.
	IsExternal(url string) bool
}

// ServiceImpl implements Service on top of the extraction tool.
type ServiceImpl struct {
	// cfg contains the application configuration.
	cfg *config.Config
	// client is the extraction tool.
	client ytdlp.Client
}

// NewService creates a format listing service.
func NewService(cfg *config.Config, client ytdlp.Client) *ServiceImpl {
	return &ServiceImpl{
		cfg:    cfg,
		client: client,
	}
}

// IsExternal reports whether url is handled by the external downloader.
func (s *ServiceImpl) IsExternal(url string) bool {
	return utils.HostMatches(url, s.cfg.ExternalDownloaderDomains)
}

// ListFormats returns the deduplicated, sorted and truncated formats of url.
func (s *ServiceImpl) ListFormats(ctx context.Context, url string) (*model.FormatListing, error) {
	url = strings.TrimSpace(url)
	if !utils.IsHTTPURL(url) {
		return nil, ErrInvalidURL
	}

	if s.IsExternal(url) {
		logger.Debugf(ctx, "URL %s is served by the external downloader", url)

		return externalListing(), nil
	}

	info, err := s.client.Probe(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to probe formats: %w", err)
	}

	listing := &model.FormatListing{
		Title:        info.Title,
		VideoFormats: make([]*model.FormatDescriptor, 0),
		AudioFormats: make([]*model.FormatDescriptor, 0),
	}

	seenVideo := make(map[videoKey]struct{})
	seenAudio := make(map[int]struct{})

	for _, raw := range info.Formats {
		descriptor := toDescriptor(raw)
		if descriptor == nil {
			continue
		}

		switch descriptor.Kind {
		case model.FormatKindVideo:
			key := videoKey{height: descriptor.Height, ext: descriptor.Extension, fps: descriptor.FPS}
			if _, dup := seenVideo[key]; dup {
				continue
			}

			seenVideo[key] = struct{}{}
			listing.VideoFormats = append(listing.VideoFormats, descriptor)
		case model.FormatKindAudio:
			if _, dup := seenAudio[descriptor.Bitrate]; dup {
				continue
			}

			seenAudio[descriptor.Bitrate] = struct{}{}
			listing.AudioFormats = append(listing.AudioFormats, descriptor)
		}
	}

	slices.SortStableFunc(listing.VideoFormats, func(a, b *model.FormatDescriptor) int {
		return cmp.Or(cmp.Compare(b.Height, a.Height), cmp.Compare(b.FPS, a.FPS))
	})

	slices.SortStableFunc(listing.AudioFormats, func(a, b *model.FormatDescriptor) int {
		return cmp.Compare(b.Bitrate, a.Bitrate)
	})

	listing.VideoFormats = truncate(listing.VideoFormats, s.cfg.MaxVideoFormats)
	listing.AudioFormats = truncate(listing.AudioFormats, s.cfg.MaxAudioFormats)

	logger.Debugf(ctx, "Listed %d video and %d audio formats of %s (%d raw)",
		len(listing.VideoFormats), len(listing.AudioFormats), url, len(info.Formats))

	return listing, nil
}

// videoKey identifies duplicate video formats.
type videoKey struct {
	height int
	ext    string
	fps    int
}

// toDescriptor converts a raw format, returning nil for formats that cannot be downloaded as media.
func toDescriptor(raw *ytdlp.RawFormat) *model.FormatDescriptor {
	if raw == nil || raw.Ext == "mhtml" || strings.HasPrefix(raw.FormatID, "sb") {
		return nil
	}

	descriptor := &model.FormatDescriptor{
		FormatID:  raw.FormatID,
		Extension: raw.Ext,
		Note:      raw.FormatNote,
		Size:      formatSize(raw),
	}

	switch {
	case raw.HasVideo():
		descriptor.Kind = model.FormatKindVideo
		descriptor.VideoCodec = raw.VCodec
		descriptor.Height = derefInt(raw.Height)
		descriptor.FPS = roundFloat(raw.FPS)
		descriptor.Resolution = resolutionLabel(raw)

		if raw.HasAudio() {
			descriptor.AudioCodec = raw.ACodec
		}
	case raw.HasAudio():
		descriptor.Kind = model.FormatKindAudio
		descriptor.AudioCodec = raw.ACodec
		descriptor.Bitrate = roundFloat(cmp.Or(raw.ABR, raw.TBR))
	default:
		return nil
	}

	return descriptor
}

// externalListing is the single synthetic descriptor of external-downloader URLs.
func externalListing() *model.FormatListing {
	return &model.FormatListing{
		Title:        externalFormatTitle,
		VideoFormats: make([]*model.FormatDescriptor, 0),
		AudioFormats: []*model.FormatDescriptor{
			{
				FormatID:  ExternalFormatID,
				Extension: strings.TrimPrefix(constants.ExtensionMP3, "."),
				Kind:      model.FormatKindAudio,
				Bitrate:   externalFormatBitrate,
				Note:      "downloaded with the external downloader",
			},
		},
	}
}

// resolutionLabel returns the yt-dlp resolution or builds one from the dimensions.
func resolutionLabel(raw *ytdlp.RawFormat) string {
	if raw.Resolution != "" && raw.Resolution != "audio only" {
		return raw.Resolution
	}

	if raw.Width != nil && raw.Height != nil {
		return strconv.Itoa(*raw.Width) + "x" + strconv.Itoa(*raw.Height)
	}

	if raw.Height != nil {
		return strconv.Itoa(*raw.Height) + "p"
	}

	return ""
}

// formatSize prefers the exact size and falls back to the approximate one.
func formatSize(raw *ytdlp.RawFormat) *int64 {
	if raw.Filesize != nil && *raw.Filesize > 0 {
		return raw.Filesize
	}

	if raw.FilesizeApprox != nil && *raw.FilesizeApprox > 0 {
		return raw.FilesizeApprox
	}

	return nil
}

func derefInt(value *int) int {
	if value == nil {
		return 0
	}

	return *value
}

func roundFloat(value *float64) int {
	if value == nil {
		return 0
	}

	return int(math.Round(*value))
}

// truncate keeps at most limit items; a non-positive limit keeps everything.
func truncate[E any](items []E, limit int64) []E {
	if limit <= 0 || int64(len(items)) <= limit {
		return items
	}

	return items[:limit]
}
