package kis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// 순위분석/시세 API tr_id 모음. 순위분석은 실전투자 전용.
const (
	trVolumeRank      = "FHPST01710000" // 거래량 순위
	trFluctuationRank = "FHPST01700000" // 등락률 순위
	trDailyChart      = "FHKST03010100" // 기간별 시세 (일봉)
	trCurrentPrice    = "FHKST01010100" // 현재가 시세
	trInvestor        = "FHKST01010900" // 투자자별 매매동향
	trFinancialRatio  = "FHKST66430300" // 재무비율
)

type rankedRow struct {
	Code         string `json:"mksc_shrn_iscd"`
	Name         string `json:"hts_kor_isnm"`
	Price        string `json:"stck_prpr"`
	ChangeRate   string `json:"prdy_ctrt"`
	Volume       string `json:"acml_vol"`
	TradingValue string `json:"acml_tr_pbmn"`
	Rank         string `json:"data_rank"`
}

func toRankedStocks(market string, rows []rankedRow) []RankedStock {
	stocks := make([]RankedStock, 0, len(rows))
	for i, row := range rows {
		rank := int(parseInt(row.Rank))
		if rank == 0 {
			rank = i + 1
		}
		stocks = append(stocks, RankedStock{
			Code:         row.Code,
			Name:         row.Name,
			Market:       MarketName(market),
			Price:        parseFloat(row.Price),
			ChangeRate:   parseFloat(row.ChangeRate),
			Volume:       parseInt(row.Volume),
			TradingValue: parseInt(row.TradingValue),
			Rank:         rank,
		})
	}
	return stocks
}

// volumeRank queries the volume ranking endpoint. blngClsCode가 순위 기준을
// 고른다: "0" 거래량, "3" 거래금액.
func (c *Client) volumeRank(ctx context.Context, market, blngClsCode string) ([]RankedStock, error) {
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", MarketAll)
	params.Set("FID_COND_SCR_DIV_CODE", "20171")
	params.Set("FID_INPUT_ISCD", market)
	params.Set("FID_DIV_CLS_CODE", "0")
	params.Set("FID_BLNG_CLS_CODE", blngClsCode)
	params.Set("FID_TRGT_CLS_CODE", "111111111")
	params.Set("FID_TRGT_EXLS_CLS_CODE", "000000")
	params.Set("FID_INPUT_PRICE_1", "")
	params.Set("FID_INPUT_PRICE_2", "")
	params.Set("FID_VOL_CNT", "")
	params.Set("FID_INPUT_DATE_1", "")

	raw, err := c.Do(ctx, http.MethodGet, "/uapi/domestic-stock/v1/quotations/volume-rank", trVolumeRank, params, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Output []rankedRow `json:"output"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("kis: decode volume rank: %w", err)
	}
	return toRankedStocks(market, result.Output), nil
}

// VolumeRanking returns the top stocks by accumulated volume.
func (c *Client) VolumeRanking(ctx context.Context, market string) ([]RankedStock, error) {
	return c.volumeRank(ctx, market, "0")
}

// TradingValueRanking returns the top stocks by accumulated trading value.
func (c *Client) TradingValueRanking(ctx context.Context, market string) ([]RankedStock, error) {
	return c.volumeRank(ctx, market, "3")
}

// FluctuationRanking returns the top stocks by daily change rate (상승률순).
func (c *Client) FluctuationRanking(ctx context.Context, market string) ([]RankedStock, error) {
	return c.fluctuationRank(ctx, market, "0") // 상승률순
}

// FallingRanking returns the top stocks by daily decline rate (하락률순).
// 하락 교차 집합 내보내기와 테마 프롬프트 컨텍스트에 쓰인다.
func (c *Client) FallingRanking(ctx context.Context, market string) ([]RankedStock, error) {
	return c.fluctuationRank(ctx, market, "1") // 하락률순
}

func (c *Client) fluctuationRank(ctx context.Context, market, sortCode string) ([]RankedStock, error) {
	params := url.Values{}
	params.Set("fid_cond_mrkt_div_code", MarketAll)
	params.Set("fid_cond_scr_div_code", "20170")
	params.Set("fid_input_iscd", market)
	params.Set("fid_rank_sort_cls_code", sortCode)
	params.Set("fid_input_cnt_1", "0")
	params.Set("fid_prc_cls_code", "0")
	params.Set("fid_input_price_1", "")
	params.Set("fid_input_price_2", "")
	params.Set("fid_vol_cnt", "")
	params.Set("fid_trgt_cls_code", "0")
	params.Set("fid_trgt_exls_cls_code", "0")
	params.Set("fid_div_cls_code", "0")
	params.Set("fid_rsfl_rate1", "")
	params.Set("fid_rsfl_rate2", "")

	raw, err := c.Do(ctx, http.MethodGet, "/uapi/domestic-stock/v1/ranking/fluctuation", trFluctuationRank, params, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Output []struct {
			Code       string `json:"stck_shrn_iscd"`
			Name       string `json:"hts_kor_isnm"`
			Price      string `json:"stck_prpr"`
			ChangeRate string `json:"prdy_ctrt"`
			Volume     string `json:"acml_vol"`
			Rank       string `json:"data_rank"`
		} `json:"output"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("kis: decode fluctuation rank: %w", err)
	}

	stocks := make([]RankedStock, 0, len(result.Output))
	for i, row := range result.Output {
		rank := int(parseInt(row.Rank))
		if rank == 0 {
			rank = i + 1
		}
		stocks = append(stocks, RankedStock{
			Code:       row.Code,
			Name:       row.Name,
			Market:     MarketName(market),
			Price:      parseFloat(row.Price),
			ChangeRate: parseFloat(row.ChangeRate),
			Volume:     parseInt(row.Volume),
			Rank:       rank,
		})
	}
	return stocks, nil
}

// DailyChart returns daily bars for the given range, most recent first.
// days는 영업일이 아닌 달력일 기준 조회 범위.
func (c *Client) DailyChart(ctx context.Context, code string, days int) ([]DailyBar, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", MarketAll)
	params.Set("FID_INPUT_ISCD", code)
	params.Set("FID_INPUT_DATE_1", start.Format("20060102"))
	params.Set("FID_INPUT_DATE_2", end.Format("20060102"))
	params.Set("FID_PERIOD_DIV_CODE", "D")
	params.Set("FID_ORG_ADJ_PRC", "0") // 수정주가

	raw, err := c.Do(ctx, http.MethodGet, "/uapi/domestic-stock/v1/quotations/inquire-daily-itemchartprice", trDailyChart, params, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Output2 []DailyBar `json:"output2"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("kis: decode daily chart: %w", err)
	}

	// 거래일이 아닌 빈 행이 섞여 오는 경우가 있다.
	bars := make([]DailyBar, 0, len(result.Output2))
	for _, bar := range result.Output2 {
		if bar.Date != "" {
			bars = append(bars, bar)
		}
	}
	return bars, nil
}

// CurrentPrice returns the current-price snapshot for one stock.
func (c *Client) CurrentPrice(ctx context.Context, code string) (*PriceSnapshot, error) {
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", MarketAll)
	params.Set("FID_INPUT_ISCD", code)

	raw, err := c.Do(ctx, http.MethodGet, "/uapi/domestic-stock/v1/quotations/inquire-price", trCurrentPrice, params, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Output struct {
			Price         string `json:"stck_prpr"`
			Change        string `json:"prdy_vrss"`
			ChangeRate    string `json:"prdy_ctrt"`
			Open          string `json:"stck_oprc"`
			High          string `json:"stck_hgpr"`
			Low           string `json:"stck_lwpr"`
			Volume        string `json:"acml_vol"`
			TradingValue  string `json:"acml_tr_pbmn"`
			MarketCap     string `json:"hts_avls"` // 억원 단위
			Week52High    string `json:"w52_hgpr"`
			PER           string `json:"per"`
			PBR           string `json:"pbr"`
			EPS           string `json:"eps"`
			BPS           string `json:"bps"`
			ProgramNetBuy string `json:"pgtr_ntby_qty"`
			ShortRatio    string `json:"ssts_hot_rate"` // 공매도 비중
			ShortVolume   string `json:"ssts_cntg_qty"` // 공매도 체결량
		} `json:"output"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("kis: decode current price: %w", err)
	}

	out := result.Output
	price := parseFloat(out.Price)
	return &PriceSnapshot{
		Code:          code,
		Price:         price,
		PrevClose:     price - parseFloat(out.Change),
		Change:        parseFloat(out.Change),
		ChangeRate:    parseFloat(out.ChangeRate),
		Open:          parseFloat(out.Open),
		High:          parseFloat(out.High),
		Low:           parseFloat(out.Low),
		Volume:        parseInt(out.Volume),
		TradingValue:  parseInt(out.TradingValue),
		MarketCap:     parseInt(out.MarketCap) * 100_000_000, // 억원 → 원
		Week52High:    parseFloat(out.Week52High),
		PER:           parseFloat(out.PER),
		PBR:           parseFloat(out.PBR),
		EPS:           parseFloat(out.EPS),
		BPS:           parseFloat(out.BPS),
		ProgramNetBuy: parseInt(out.ProgramNetBuy),
		ShortRatio:    parseFloat(out.ShortRatio),
		ShortVolume:   parseInt(out.ShortVolume),
		FetchedAt:     time.Now(),
	}, nil
}

// InvestorFlows returns recent daily investor net-buy rows, most recent first.
func (c *Client) InvestorFlows(ctx context.Context, code string) ([]InvestorFlow, error) {
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", MarketAll)
	params.Set("FID_INPUT_ISCD", code)

	raw, err := c.Do(ctx, http.MethodGet, "/uapi/domestic-stock/v1/quotations/inquire-investor", trInvestor, params, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Output []struct {
			Date           string `json:"stck_bsop_date"`
			ForeignNet     string `json:"frgn_ntby_qty"`
			InstitutionNet string `json:"orgn_ntby_qty"`
			PersonNet      string `json:"prsn_ntby_qty"`
		} `json:"output"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("kis: decode investor flows: %w", err)
	}

	flows := make([]InvestorFlow, 0, len(result.Output))
	for _, row := range result.Output {
		if row.Date == "" {
			continue
		}
		flows = append(flows, InvestorFlow{
			Code:           code,
			Date:           row.Date,
			ForeignNet:     parseInt(row.ForeignNet),
			InstitutionNet: parseInt(row.InstitutionNet),
			PersonNet:      parseInt(row.PersonNet),
		})
	}
	return flows, nil
}

// FinancialRatios returns per-period financial ratios, most recent first.
func (c *Client) FinancialRatios(ctx context.Context, code string) ([]FinancialRatio, error) {
	params := url.Values{}
	params.Set("FID_DIV_CLS_CODE", "1") // 분기
	params.Set("fid_cond_mrkt_div_code", MarketAll)
	params.Set("fid_input_iscd", code)

	raw, err := c.Do(ctx, http.MethodGet, "/uapi/domestic-stock/v1/finance/financial-ratio", trFinancialRatio, params, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Output []struct {
			Period      string `json:"stac_yymm"`
			ROE         string `json:"roe_val"`
			EPS         string `json:"eps"`
			BPS         string `json:"bps"`
			DebtRatio   string `json:"lblt_rate"`
			EPSGrowth   string `json:"grs"`
			SalesGrowth string `json:"bsop_prfi_inrt"`
		} `json:"output"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("kis: decode financial ratios: %w", err)
	}

	ratios := make([]FinancialRatio, 0, len(result.Output))
	for _, row := range result.Output {
		ratios = append(ratios, FinancialRatio{
			Period:      row.Period,
			ROE:         parseFloat(row.ROE),
			EPS:         parseFloat(row.EPS),
			BPS:         parseFloat(row.BPS),
			DebtRatio:   parseFloat(row.DebtRatio),
			EPSGrowth:   parseFloat(row.EPSGrowth),
			SalesGrowth: parseFloat(row.SalesGrowth),
		})
	}
	return ratios, nil
}
