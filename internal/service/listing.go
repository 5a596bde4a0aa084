package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"docvault/internal/config"
	"docvault/internal/model"
	"docvault/internal/repository"
)

const recentDocumentsLimit = 5

// sizeBucketBounds are the upper bounds of the dashboard size histogram, in
// bytes. The last bucket is open-ended.
var sizeBucketBounds = []struct {
	Label string
	Upper int64
}{
	{"0-100KB", 100 * 1024},
	{"100KB-1MB", 1024 * 1024},
	{"1MB-5MB", 5 * 1024 * 1024},
	{"5MB-10MB", 10 * 1024 * 1024},
	{"10MB+", -1},
}

const topTagsLimit = 10

// ListOwnedParams are the caller-supplied filter, sort, and page controls for
// the owned-documents listing.
type ListOwnedParams struct {
	Query     string
	Tags      []string
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// PageInfo describes the returned page relative to the full result set.
type PageInfo struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// DocumentPage is one page of owned documents.
type DocumentPage struct {
	Documents []model.Document `json:"documents"`
	Page      PageInfo         `json:"pagination"`
}

// SharedPage is one page of documents shared with the caller, each annotated
// with the caller's access level.
type SharedPage struct {
	Documents []repository.SharedDocument `json:"documents"`
	Page      PageInfo                    `json:"pagination"`
}

// SizeBucket is one bar of the dashboard size histogram.
type SizeBucket struct {
	Label     string `json:"label"`
	Count     int    `json:"count"`
	TotalSize int64  `json:"totalSize"`
}

// MimeGroup aggregates the caller's documents sharing a mime type.
type MimeGroup struct {
	MimeType  string `json:"mimeType"`
	Count     int    `json:"count"`
	TotalSize int64  `json:"totalSize"`
}

// TagCount is one entry of the dashboard top-tags list.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// DashboardSummary is the aggregate view over the caller's owned, non-deleted
// documents.
type DashboardSummary struct {
	TotalDocuments int              `json:"totalDocuments"`
	TotalSize      int64            `json:"totalSize"`
	AverageSize    int64            `json:"averageSize"`
	Recent         []model.Document `json:"recentDocuments"`
	SizeBuckets    []SizeBucket     `json:"sizeDistribution"`
	MimeGroups     []MimeGroup      `json:"byMimeType"`
	TopTags        []TagCount       `json:"topTags"`
}

// ListingService serves the read-side listing and aggregate views. It never
// mutates anything.
type ListingService interface {
	// ListOwned returns a filtered, sorted page of the caller's documents.
	// Unknown sort fields fall back to creation time; out-of-range page
	// sizes are clamped, never rejected.
	ListOwned(ctx context.Context, userID string, p ListOwnedParams) (*DocumentPage, error)

	// ListShared returns a page of documents other owners granted the
	// caller access to, newest activity first.
	ListShared(ctx context.Context, userID string, page, pageSize int) (*SharedPage, error)

	// Dashboard returns the aggregate summary of the caller's owned
	// documents.
	Dashboard(ctx context.Context, userID string) (*DashboardSummary, error)

	// ListTags returns the distinct tags across every document the caller
	// can see, sorted ascending.
	ListTags(ctx context.Context, userID string) ([]string, error)
}

type listingService struct {
	docs   repository.DocumentRepository
	limits config.UploadConfig
}

// NewListingService constructs a new ListingService.
func NewListingService(docs repository.DocumentRepository, limits config.UploadConfig) ListingService {
	return &listingService{docs: docs, limits: limits}
}

func (s *listingService) ListOwned(ctx context.Context, userID string, p ListOwnedParams) (*DocumentPage, error) {
	page, pageSize := s.clampPage(p.Page, p.PageSize)

	res, err := s.docs.ListOwned(ctx, repository.OwnedFilter{
		OwnerID:  userID,
		Query:    strings.TrimSpace(p.Query),
		Tags:     NormalizeTags(p.Tags),
		SortBy:   p.SortBy,
		SortDesc: p.SortOrder != "asc",
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("list owned documents: %w", err)
	}

	return &DocumentPage{
		Documents: res.Items,
		Page:      pageInfo(page, pageSize, res.Total),
	}, nil
}

func (s *listingService) ListShared(ctx context.Context, userID string, page, pageSize int) (*SharedPage, error) {
	page, pageSize = s.clampPage(page, pageSize)

	res, err := s.docs.ListShared(ctx, userID, repository.PageQuery{
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("list shared documents: %w", err)
	}

	return &SharedPage{
		Documents: res.Items,
		Page:      pageInfo(page, pageSize, res.Total),
	}, nil
}

func (s *listingService) Dashboard(ctx context.Context, userID string) (*DashboardSummary, error) {
	recent, err := s.docs.ListOwned(ctx, repository.OwnedFilter{
		OwnerID:  userID,
		SortBy:   "createdAt",
		SortDesc: true,
		Limit:    recentDocumentsLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("list recent documents: %w", err)
	}

	stats, err := s.docs.StatsByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load document stats: %w", err)
	}

	summary := &DashboardSummary{
		TotalDocuments: len(stats),
		Recent:         recent.Items,
		SizeBuckets:    make([]SizeBucket, len(sizeBucketBounds)),
	}
	for i, b := range sizeBucketBounds {
		summary.SizeBuckets[i].Label = b.Label
	}

	mimeIdx := make(map[string]int)
	tagCounts := make(map[string]int)
	for _, st := range stats {
		summary.TotalSize += st.Size
		b := bucketFor(st.Size)
		summary.SizeBuckets[b].Count++
		summary.SizeBuckets[b].TotalSize += st.Size

		i, ok := mimeIdx[st.MimeType]
		if !ok {
			i = len(summary.MimeGroups)
			mimeIdx[st.MimeType] = i
			summary.MimeGroups = append(summary.MimeGroups, MimeGroup{MimeType: st.MimeType})
		}
		summary.MimeGroups[i].Count++
		summary.MimeGroups[i].TotalSize += st.Size

		for _, tag := range st.Tags {
			tagCounts[tag]++
		}
	}

	sort.Slice(summary.MimeGroups, func(i, j int) bool {
		a, b := summary.MimeGroups[i], summary.MimeGroups[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.MimeType < b.MimeType
	})

	if summary.TotalDocuments > 0 {
		summary.AverageSize = summary.TotalSize / int64(summary.TotalDocuments)
	}

	summary.TopTags = topTags(tagCounts)
	return summary, nil
}

func (s *listingService) ListTags(ctx context.Context, userID string) ([]string, error) {
	tags, err := s.docs.ListTags(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// clampPage normalizes the page controls: page is at least 1, pageSize
// defaults when unset and is capped at the configured maximum.
func (s *listingService) clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.limits.DefaultPageSize
	}
	if pageSize > s.limits.MaxPageSize {
		pageSize = s.limits.MaxPageSize
	}
	return page, pageSize
}

func pageInfo(page, pageSize, total int) PageInfo {
	pages := (total + pageSize - 1) / pageSize
	return PageInfo{Page: page, PageSize: pageSize, Total: total, TotalPages: pages}
}

// bucketFor returns the histogram index for a document size.
func bucketFor(size int64) int {
	for i, b := range sizeBucketBounds {
		if b.Upper < 0 || size < b.Upper {
			return i
		}
	}
	return len(sizeBucketBounds) - 1
}

// topTags ranks tags by count descending, ties broken alphabetically, and
// keeps the first ten.
func topTags(counts map[string]int) []TagCount {
	out := make([]TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if len(out) > topTagsLimit {
		out = out[:topTagsLimit]
	}
	return out
}
