package sim

// Item identifiers. The catalog is closed; unknown IDs are rejected at the
// shop boundary.
const (
	ItemArmor     = "armor"      // absorbs one hit, then breaks
	ItemRobbery   = "robbery"    // steal a random shop item on kill
	ItemExtraShot = "extra_shot" // fire once without waiting for reload
	ItemVIP       = "vip"        // halves the next scheduled deduction
	ItemGreed     = "greed"      // doubles the vanish bonus while in fury
	ItemShock     = "shock"      // missed shots still sap target accuracy
	ItemInterest  = "interest"   // pays 10% of balance at round end
	ItemLuckyPick = "lucky_pick" // doubles mining rewards
	ItemBoots     = "boots"      // movement speed stack
	ItemScope     = "scope"      // range stack
	ItemTrigger   = "trigger"    // reload time stack
)

// ItemDef describes one catalog entry. Stackable items may appear multiple
// times in an inventory; unique items are rejected on repeat purchase.
type ItemDef struct {
	ID             string
	Name           string
	Price          int
	Stackable      bool
	ShopItem       bool
	RoundTemporary bool
	Weight         int
}

var itemCatalog = map[string]ItemDef{
	ItemArmor:     {ID: ItemArmor, Name: "Cuirass", Price: 60, ShopItem: true, Weight: 10},
	ItemRobbery:   {ID: ItemRobbery, Name: "Cutpurse Gloves", Price: 80, ShopItem: true, Weight: 6},
	ItemExtraShot: {ID: ItemExtraShot, Name: "Loaded Pistol", Price: 40, Stackable: true, ShopItem: true, Weight: 12},
	ItemVIP:       {ID: ItemVIP, Name: "Patron Seal", Price: 100, ShopItem: true, Weight: 5},
	ItemGreed:     {ID: ItemGreed, Name: "Gilded Dice", Price: 70, ShopItem: true, Weight: 6},
	ItemShock:     {ID: ItemShock, Name: "Powder Flash", Price: 50, ShopItem: true, RoundTemporary: true, Weight: 8},
	ItemInterest:  {ID: ItemInterest, Name: "Ledger", Price: 90, ShopItem: true, Weight: 5},
	ItemLuckyPick: {ID: ItemLuckyPick, Name: "Lucky Pickaxe", Price: 120, ShopItem: true, Weight: 2},
	ItemBoots:     {ID: ItemBoots, Name: "Riding Boots", Price: 35, Stackable: true, ShopItem: true, Weight: 12},
	ItemScope:     {ID: ItemScope, Name: "Spyglass", Price: 45, Stackable: true, ShopItem: true, Weight: 10},
	ItemTrigger:   {ID: ItemTrigger, Name: "Hair Trigger", Price: 55, Stackable: true, ShopItem: true, Weight: 8},
}

// ItemByID resolves a catalog entry.
func ItemByID(id string) (ItemDef, bool) {
	def, ok := itemCatalog[id]
	return def, ok
}

func shopItemIDs() []string {
	ids := make([]string, 0, len(itemCatalog))
	for id, def := range itemCatalog {
		if def.ShopItem {
			ids = append(ids, id)
		}
	}
	return ids
}

// hasItem reports whether the inventory holds at least one of the item.
func hasItem(items []string, id string) bool {
	for _, held := range items {
		if held == id {
			return true
		}
	}
	return false
}

// countItem reports the stack size for the item.
func countItem(items []string, id string) int {
	n := 0
	for _, held := range items {
		if held == id {
			n++
		}
	}
	return n
}

// removeItem drops the first occurrence and reports whether one was held.
func removeItem(items []string, id string) ([]string, bool) {
	for i, held := range items {
		if held == id {
			return append(items[:i:i], items[i+1:]...), true
		}
	}
	return items, false
}

// stripRoundTemporary removes every item tagged for end-of-round cleanup.
func stripRoundTemporary(items []string) ([]string, bool) {
	kept := items[:0:0]
	changed := false
	for _, held := range items {
		if def, ok := itemCatalog[held]; ok && def.RoundTemporary {
			changed = true
			continue
		}
		kept = append(kept, held)
	}
	return kept, changed
}
