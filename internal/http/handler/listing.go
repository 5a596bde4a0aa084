package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/http/middleware"
	"docvault/internal/service"
)

// listDocuments returns a page of the caller's own documents. Query
// parameters: q, tags (comma-separated), sort_by, sort_order, page, page_size.
func listDocuments(svc service.ListingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := queryInt(c, "page", 1)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE", "invalid page")
		}
		pageSize, err := queryInt(c, "page_size", 0)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE_SIZE", "invalid page size")
		}

		res, err := svc.ListOwned(c.UserContext(), middleware.UserID(c), service.ListOwnedParams{
			Query:     c.Query("q"),
			Tags:      queryTags(c),
			SortBy:    c.Query("sort_by"),
			SortOrder: c.Query("sort_order"),
			Page:      page,
			PageSize:  pageSize,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	}
}

// listSharedDocuments returns a page of documents shared with the caller.
func listSharedDocuments(svc service.ListingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := queryInt(c, "page", 1)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE", "invalid page")
		}
		pageSize, err := queryInt(c, "page_size", 0)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE_SIZE", "invalid page size")
		}

		res, err := svc.ListShared(c.UserContext(), middleware.UserID(c), page, pageSize)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	}
}

// dashboard returns the aggregate summary of the caller's documents.
func dashboard(svc service.ListingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sum, err := svc.Dashboard(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(sum)
	}
}

// listTags returns the distinct tags across everything the caller can see.
func listTags(svc service.ListingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tags, err := svc.ListTags(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"tags": tags})
	}
}

func queryInt(c *fiber.Ctx, name string, def int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func queryTags(c *fiber.Ctx) []string {
	var tags []string
	for _, t := range strings.Split(c.Query("tags"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
