package kis

import "time"

// Market codes for the FID_COND_MRKT_DIV_CODE / 시장 구분 파라미터.
const (
	MarketAll    = "J" // 전체 (주식)
	MarketKOSPI  = "0"
	MarketKOSDAQ = "1"
)

// MarketName renders a 시장 구분 코드 as its display name.
func MarketName(market string) string {
	switch market {
	case MarketKOSPI:
		return "KOSPI"
	case MarketKOSDAQ:
		return "KOSDAQ"
	default:
		return ""
	}
}

// envelope is the common KIS response wrapper.
// rt_cd "0"이면 성공, 그 외는 msg_cd/msg1에 사유.
type envelope struct {
	RtCd  string `json:"rt_cd"`
	MsgCd string `json:"msg_cd"`
	Msg1  string `json:"msg1"`
}

// DailyBar is one row of the daily chart (inquire-daily-itemchartprice output2).
// 최신일이 먼저 온다.
type DailyBar struct {
	Date         string  `json:"stck_bsop_date"`
	Open         float64 `json:"stck_oprc,string"`
	High         float64 `json:"stck_hgpr,string"`
	Low          float64 `json:"stck_lwpr,string"`
	Close        float64 `json:"stck_clpr,string"`
	Volume       int64   `json:"acml_vol,string"`
	TradingValue int64   `json:"acml_tr_pbmn,string"`
}

// FormattedDate renders the 8-digit trade date as YYYY-MM-DD.
func (b DailyBar) FormattedDate() string {
	if len(b.Date) != 8 {
		return b.Date
	}
	return b.Date[:4] + "-" + b.Date[4:6] + "-" + b.Date[6:]
}

// PriceSnapshot is the current-price view of one stock (inquire-price output).
type PriceSnapshot struct {
	Code            string
	Price           float64 // 현재가
	PrevClose       float64 // 전일 종가 (현재가 - 전일대비)
	Change          float64 // 전일대비
	ChangeRate      float64 // 등락률 %
	Open            float64
	High            float64
	Low             float64
	Volume          int64
	TradingValue    int64
	MarketCap       int64   // 시가총액 (원)
	Week52High      float64 // 52주 최고가
	PER             float64
	PBR             float64
	EPS             float64
	BPS             float64
	ProgramNetBuy   int64   // 프로그램매매 순매수 수량
	ShortRatio      float64 // 공매도 비중 %
	ShortVolume     int64   // 공매도 거래량
	FetchedAt       time.Time
}

// RankedStock is one row of a ranking endpoint response.
type RankedStock struct {
	Code         string
	Name         string
	Market       string // "KOSPI" | "KOSDAQ"
	Price        float64
	ChangeRate   float64
	Volume       int64
	TradingValue int64
	Rank         int
}

// InvestorFlow is the most recent daily net buy quantities by investor group
// (inquire-investor).
type InvestorFlow struct {
	Code           string
	Date           string
	ForeignNet     int64 // 외국인 순매수 (주)
	InstitutionNet int64 // 기관 순매수 (주)
	PersonNet      int64 // 개인 순매수 (주)
}

// FinancialRatio is one period row of the financial-ratio endpoint.
type FinancialRatio struct {
	Period       string  // 결산 년월
	ROE          float64
	EPS          float64
	BPS          float64
	DebtRatio    float64 // 부채비율 %
	EPSGrowth    float64 // EPS 증가율 %
	SalesGrowth  float64 // 매출 증가율 %
}
