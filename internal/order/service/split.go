package service

import (
	"fmt"

	cartdomain "github.com/jeseias/djezyas/internal/cart/domain"
	catalogdomain "github.com/jeseias/djezyas/internal/catalog/domain"
)

// SplitByOrganization partitions cart items by the organization owning each
// referenced product. Every cart item must be covered by the supplied product
// list; the caller resolves products first. Bucket ordering is not defined.
func SplitByOrganization(items []cartdomain.CartItem, products []*catalogdomain.Product) (map[string][]cartdomain.CartItem, error) {
	owners := make(map[string]string, len(products))
	for _, p := range products {
		if _, dup := owners[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %s in product list", p.ID)
		}
		owners[p.ID] = p.OrganizationID
	}

	groups := make(map[string][]cartdomain.CartItem)
	for _, item := range items {
		orgID, ok := owners[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("cart item references unresolved product %s", item.ProductID)
		}
		groups[orgID] = append(groups[orgID], item)
	}

	return groups, nil
}
