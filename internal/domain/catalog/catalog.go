// Package catalog holds the fixed set of cookie recipes the factory bakes.
package catalog

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Recipe identifies a cookie in the catalog.
type Recipe string

// Pre-made recipes.
const (
	Chocolalala    Recipe = "CHOCOLALALA"
	DarkTemptation Recipe = "DARK_TEMPTATION"
	SooChocolate   Recipe = "SOO_CHOCOLATE"
)

func (r Recipe) String() string { return string(r) }

// Cookie is a catalog entry.
type Cookie struct {
	Recipe   Recipe
	FullName string
	Price    decimal.Decimal
}

// UnknownRecipeError is returned for a recipe that is not in the catalog.
type UnknownRecipeError struct {
	Recipe Recipe
}

func (e *UnknownRecipeError) Error() string {
	return fmt.Sprintf("unknown recipe %q", string(e.Recipe))
}

// Catalog is an immutable recipe to price table built once at startup.
type Catalog struct {
	cookies map[Recipe]Cookie
	ordered []Cookie
}

// New builds a catalog from the given cookies. Recipes must be unique and
// prices strictly positive.
func New(cookies ...Cookie) (*Catalog, error) {
	c := &Catalog{cookies: make(map[Recipe]Cookie, len(cookies))}
	for _, cookie := range cookies {
		if cookie.Recipe == "" {
			return nil, errors.New("recipe id is required")
		}
		if !cookie.Price.IsPositive() {
			return nil, errors.Errorf("price of %s must be positive, got %s", cookie.Recipe, cookie.Price)
		}
		if _, dup := c.cookies[cookie.Recipe]; dup {
			return nil, errors.Errorf("duplicate recipe %s", cookie.Recipe)
		}
		c.cookies[cookie.Recipe] = cookie
		c.ordered = append(c.ordered, cookie)
	}
	sort.Slice(c.ordered, func(i, j int) bool {
		return c.ordered[i].Recipe < c.ordered[j].Recipe
	})
	return c, nil
}

// Default returns the factory's pre-made recipes.
func Default() *Catalog {
	c, err := New(
		Cookie{Recipe: Chocolalala, FullName: "Chocolalala", Price: decimal.RequireFromString("1.30")},
		Cookie{Recipe: DarkTemptation, FullName: "Dark Temptation", Price: decimal.RequireFromString("1.90")},
		Cookie{Recipe: SooChocolate, FullName: "Soo Chocolate", Price: decimal.RequireFromString("1.25")},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the catalog entry for r.
func (c *Catalog) Lookup(r Recipe) (Cookie, bool) {
	cookie, ok := c.cookies[r]
	return cookie, ok
}

// UnitPrice returns the price of a single cookie of recipe r.
func (c *Catalog) UnitPrice(r Recipe) (decimal.Decimal, error) {
	cookie, ok := c.cookies[r]
	if !ok {
		return decimal.Zero, &UnknownRecipeError{Recipe: r}
	}
	return cookie.Price, nil
}

// List returns every recipe ordered by id.
func (c *Catalog) List() []Cookie {
	out := make([]Cookie, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Explore returns the recipes whose id fully matches pattern.
func (c *Catalog) Explore(pattern string) ([]Cookie, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, errors.Wrapf(err, "compile pattern %q", pattern)
	}
	var out []Cookie
	for _, cookie := range c.ordered {
		if re.MatchString(string(cookie.Recipe)) {
			out = append(out, cookie)
		}
	}
	return out, nil
}
