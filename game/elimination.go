// game/elimination.go
package game

// runElimination 每个 tick 对所有公司执行淘汰检查。
// 资产 <= 0 的公司立即转入 bankrupt，该检查不受保护期影响；
// 保护期只约束"最后存活者获胜"的判定。返回本 tick 新破产的公司ID。
func runElimination(gs *GameState) []string {
	var bankrupted []string
	for _, c := range gs.Companies {
		if c.Status != StatusActive {
			continue
		}
		if c.Assets <= 0 {
			if c.markBankrupt() {
				bankrupted = append(bankrupted, c.ID)
			}
		}
	}
	return bankrupted
}

// evaluateOutcome 重算 winner/isActive。
// 全部破产时游戏以无胜者结束；保护期内不判定最后存活者获胜。
func evaluateOutcome(gs *GameState, elapsedGrace bool) {
	active := gs.ActiveCompanies()

	if len(active) == 0 {
		gs.Winner = ""
		gs.IsActive = false
		return
	}

	if !elapsedGrace {
		return
	}

	if len(active) == 1 {
		gs.Winner = active[0].ID
		gs.IsActive = false
	}
}
