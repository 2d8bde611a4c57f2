package optimizer

import "errors"

// ErrEmptyBasket is returned by AggregateNeeds when there is nothing to buy.
var ErrEmptyBasket = errors.New("basket empty")

// AggregateNeeds converts basket lines into Needs.
//
// Lines whose products share a registry group are merged into one
// substitute-group Need when at least two lines belong to that group;
// quantities are summed and substitute policies merged (allow = AND, cap = MIN).
// Every line ends up in exactly one Need. With allowSubstitutes off no merging
// happens and every line becomes an individual Need without substitutes.
func AggregateNeeds(lines []*BasketLine, registry SubstituteRegistry, allowSubstitutes bool) ([]*Need, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyBasket
	}
	if registry == nil {
		registry = noRegistry{}
	}

	productGroup := make(map[string]string, len(lines))
	groupLines := make(map[string][]int)
	if allowSubstitutes {
		for i, line := range lines {
			groupID, ok := productGroup[line.ProductID]
			if !ok {
				groupID, _ = registry.GroupOf(line.ProductID)
				productGroup[line.ProductID] = groupID
			}
			if groupID != "" {
				groupLines[groupID] = append(groupLines[groupID], i)
			}
		}
	}

	needs := make([]*Need, 0, len(lines))
	visited := make(map[string]bool)

	for i, line := range lines {
		groupID := productGroup[line.ProductID]
		if !allowSubstitutes || groupID == "" {
			needs = append(needs, individualNeed(line, "", false))
			continue
		}
		if visited[groupID] {
			continue
		}

		members := groupLines[groupID]
		if len(members) < 2 {
			needs = append(needs, individualNeed(line, groupID, true))
			continue
		}

		need := &Need{
			Kind:           NeedSubstituteGroup,
			GroupID:        groupID,
			Lines:          make([]*BasketLine, 0, len(members)),
			Policy:         line.Substitutes,
			HasSubstitutes: true,
		}
		for _, idx := range members {
			member := lines[idx]
			need.Lines = append(need.Lines, member)
			need.Quantity += member.Quantity
			if idx != i {
				need.Policy = need.Policy.merge(member.Substitutes)
			}
		}
		visited[groupID] = true
		needs = append(needs, need)
	}

	return needs, nil
}

func individualNeed(line *BasketLine, groupID string, hasSubstitutes bool) *Need {
	return &Need{
		Kind:           NeedIndividual,
		GroupID:        groupID,
		Quantity:       line.Quantity,
		Lines:          []*BasketLine{line},
		Policy:         line.Substitutes,
		HasSubstitutes: hasSubstitutes,
	}
}
