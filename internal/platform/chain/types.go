package chain

import "github.com/xuanbach0212/predictum/internal/domain"

// Market is the wire shape of an on-chain market record. Timestamps are
// integer microseconds since the Unix epoch; creator is an opaque account
// identity the local ledger does not track.
type Market struct {
	ID             int64   `json:"id"`
	Question       string  `json:"question"`
	Category       string  `json:"category"`
	EndTime        int64   `json:"endTime"`
	YesPool        float64 `json:"yesPool"`
	NoPool         float64 `json:"noPool"`
	TotalYesShares float64 `json:"totalYesShares"`
	TotalNoShares  float64 `json:"totalNoShares"`
	Status         string  `json:"status"`
	WinningOutcome *string `json:"winningOutcome"`
	Creator        string  `json:"creator"`
	CreatedAt      int64   `json:"createdAt"`
}

// Position is the wire shape of an on-chain position record.
type Position struct {
	MarketID  int64   `json:"marketId"`
	User      string  `json:"user"`
	YesShares float64 `json:"yesShares"`
	NoShares  float64 `json:"noShares"`
	YesAmount float64 `json:"yesAmount"`
	NoAmount  float64 `json:"noAmount"`
	Claimed   bool    `json:"claimed"`
}

// ToDomain converts the wire record into the local model, translating
// microsecond timestamps into instants.
func (m Market) ToDomain() domain.Market {
	var winning *domain.Outcome
	if m.WinningOutcome != nil {
		o := domain.Outcome(*m.WinningOutcome)
		winning = &o
	}
	return domain.Market{
		ID:             m.ID,
		Question:       m.Question,
		Category:       domain.Category(m.Category),
		Status:         domain.MarketStatus(m.Status),
		EndTime:        domain.TimestampToTime(m.EndTime),
		YesPool:        m.YesPool,
		NoPool:         m.NoPool,
		TotalYesShares: m.TotalYesShares,
		TotalNoShares:  m.TotalNoShares,
		WinningOutcome: winning,
		CreatedAt:      domain.TimestampToTime(m.CreatedAt),
	}
}
