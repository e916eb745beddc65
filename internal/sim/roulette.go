package sim

import (
	"dartagnan/server/internal/proto"
)

// dealRoulette generates the per-game accuracy pool: RoulettePoolSize
// candidates with one of them assigned. The pool is generated once per
// game and reused for every shop roulette spin.
func (w *World) dealRoulette(p *Player) {
	pool := make([]int, RoulettePoolSize)
	for i := range pool {
		pool[i] = MinAccuracy + w.rng.Intn(MaxAccuracy-MinAccuracy+1)
	}
	p.RoulettePool = pool
	p.ShopRoulettePool = pool
	p.AssignedAccuracy = pool[w.rng.Intn(len(pool))]
}

// dealShopOffer rolls a weighted 3-slot offer for one player.
func (w *World) dealShopOffer(p *Player) {
	ids := shopItemIDs()
	total := 0
	for _, id := range ids {
		def, _ := ItemByID(id)
		total += def.Weight
	}
	offer := make([]proto.ShopSlot, 0, ShopSlots)
	for len(offer) < ShopSlots {
		draw := w.rng.Intn(total)
		for _, id := range ids {
			def, _ := ItemByID(id)
			if draw < def.Weight {
				offer = append(offer, proto.ShopSlot{Item: def.ID, Price: def.Price})
				break
			}
			draw -= def.Weight
		}
	}
	p.ShopOffer = offer
	p.shopRouletteUsed = false
	p.shopBought = false
}

// handleBuyItem validates a shop purchase. Invalid slots, repeat unique
// purchases and empty wallets are rejected with an explicit response.
func (w *World) handleBuyItem(actorID int, buy *BuyItemCommand) {
	if buy == nil || w.state != StateShop {
		return
	}
	p, ok := w.players[actorID]
	if !ok || p.Bankrupt() {
		return
	}
	if buy.Slot < 0 || buy.Slot >= len(p.ShopOffer) {
		w.logf("player %d bought non-existent shop slot %d", actorID, buy.Slot)
		w.sendTo(actorID, proto.BuyResult{OK: false, Slot: buy.Slot})
		return
	}
	slot := p.ShopOffer[buy.Slot]
	def, ok := ItemByID(slot.Item)
	if !ok {
		w.sendTo(actorID, proto.BuyResult{OK: false, Slot: buy.Slot})
		return
	}
	if !def.Stackable && hasItem(p.Items, def.ID) {
		w.sendTo(actorID, proto.BuyResult{OK: false, Slot: buy.Slot})
		return
	}
	if p.Balance <= slot.Price {
		w.sendTo(actorID, proto.BuyResult{OK: false, Slot: buy.Slot})
		return
	}

	p.Balance -= slot.Price
	p.Items = append(p.Items, def.ID)
	p.shopBought = true
	p.recomputeFury()
	w.sendTo(actorID, proto.BuyResult{OK: true, Slot: buy.Slot, Item: def.ID})
	w.broadcast(proto.ItemsUpdate{ID: actorID, Items: append([]string(nil), p.Items...)})
	w.pushBalance(p)
	w.pushDerivedStats(p)
}

// handleShopRoulette re-rolls the player's accuracy from their per-game
// pool, once per shop visit, for a price.
func (w *World) handleShopRoulette(actorID int) {
	if w.state != StateShop {
		return
	}
	p, ok := w.players[actorID]
	if !ok || p.Bankrupt() || p.shopRouletteUsed {
		w.sendTo(actorID, proto.ShopRouletteResult{OK: false})
		return
	}
	price := w.shopRoulettePrice()
	if p.Balance <= price || len(p.ShopRoulettePool) == 0 {
		w.sendTo(actorID, proto.ShopRouletteResult{OK: false})
		return
	}
	p.Balance -= price
	p.shopRouletteUsed = true
	p.AssignedAccuracy = p.ShopRoulettePool[w.rng.Intn(len(p.ShopRoulettePool))]
	p.recomputeFury()
	w.sendTo(actorID, proto.ShopRouletteResult{OK: true, Accuracy: p.AssignedAccuracy})
	w.pushBalance(p)
}
