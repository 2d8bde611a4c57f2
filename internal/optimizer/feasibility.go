package optimizer

// MinShopsRequired approximates the fewest shops whose offers cover every need
// using greedy set cover: repeatedly take the shop covering the most uncovered
// needs (ties broken by shop ID). complete is false when some need cannot be
// covered by any shop.
//
// Greedy may overstate the true minimum, so the value is only safe as a
// negative filter: a limit below it may still be satisfiable in rare cases.
func MinShopsRequired(offers [][]*Offer) (count int, complete bool) {
	coverage := make(map[string]map[int]bool)
	for needIdx, needOffers := range offers {
		for _, o := range needOffers {
			if coverage[o.ShopID] == nil {
				coverage[o.ShopID] = make(map[int]bool)
			}
			coverage[o.ShopID][needIdx] = true
		}
	}

	uncovered := make(map[int]bool, len(offers))
	for i := range offers {
		uncovered[i] = true
	}

	for len(uncovered) > 0 {
		bestShop := ""
		bestGain := 0
		for shopID, needs := range coverage {
			gain := 0
			for needIdx := range needs {
				if uncovered[needIdx] {
					gain++
				}
			}
			if gain > bestGain || (gain == bestGain && gain > 0 && shopID < bestShop) {
				bestShop = shopID
				bestGain = gain
			}
		}
		if bestGain == 0 {
			return count, false
		}

		for needIdx := range coverage[bestShop] {
			delete(uncovered, needIdx)
		}
		delete(coverage, bestShop)
		count++
	}

	return count, true
}

// shopUniverse returns the distinct shops appearing in any offer, in first-seen order.
func shopUniverse(offers [][]*Offer) []string {
	seen := make(map[string]bool)
	var shops []string
	for _, needOffers := range offers {
		for _, o := range needOffers {
			if !seen[o.ShopID] {
				seen[o.ShopID] = true
				shops = append(shops, o.ShopID)
			}
		}
	}
	return shops
}
