package core

// Merge reconciles the category directory with the items of a stored budget
// document. The result has exactly one item per category, in directory order.
// Names and kinds always come from the directory; amount and paid flag come
// from the stored item with the same category id, if any. Stored items whose
// category is gone are dropped.
func Merge(categories []Category, saved []SavedItem) []BudgetLineItem {
	byID := make(map[string]SavedItem, len(saved))
	for _, it := range saved {
		byID[it.CategoryID] = it
	}

	out := make([]BudgetLineItem, 0, len(categories))
	for _, c := range categories {
		item := BudgetLineItem{
			CategoryID:   c.ID,
			CategoryName: c.Name,
			Kind:         NormalizeKind(string(c.Kind)),
		}
		if prev, ok := byID[c.ID]; ok {
			if prev.Amount != nil {
				item.Amount = FormatAmount(*prev.Amount)
			}
			item.Paid = prev.Paid
		}
		out = append(out, item)
	}
	return out
}

// Coerce converts the edit buffer into its persisted form. Amount text that
// is blank, malformed or negative is stored as zero.
func Coerce(items []BudgetLineItem) []SavedItem {
	out := make([]SavedItem, 0, len(items))
	for _, it := range items {
		v := CoerceAmount(it.Amount).Float()
		out = append(out, SavedItem{
			CategoryID:   it.CategoryID,
			CategoryName: it.CategoryName,
			Kind:         it.Kind,
			Amount:       &v,
			Paid:         it.Paid,
		})
	}
	return out
}
