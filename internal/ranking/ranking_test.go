package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/sentinel/backend/internal/external/kis"
)

func stocks(codes ...string) []kis.RankedStock {
	out := make([]kis.RankedStock, 0, len(codes))
	for i, code := range codes {
		out = append(out, kis.RankedStock{Code: code, Name: "종목" + code, Rank: i + 1})
	}
	return out
}

func codesOf(list []kis.RankedStock) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.Code)
	}
	return out
}

func TestMergeUniverseKeepsFirstSeen(t *testing.T) {
	volume := stocks("005930", "000660", "035720")
	value := stocks("000660", "005380")
	fluct := stocks("035720", "247540")

	merged := MergeUniverse(volume, value, fluct)

	assert.Equal(t, []string{"005930", "000660", "035720", "005380", "247540"}, codesOf(merged))

	// 먼저 본 리스트의 엔트리가 남아야 함
	assert.Equal(t, "종목000660", merged[1].Name)
	assert.Equal(t, 2, merged[1].Rank)
}

func TestMergeUniverseSkipsBlankCodes(t *testing.T) {
	list := []kis.RankedStock{
		{Code: "005930"},
		{Code: ""},
		{Code: "000660"},
	}
	merged := MergeUniverse(list)
	assert.Equal(t, []string{"005930", "000660"}, codesOf(merged))
}

func TestMergeUniverseIdempotentOnDuplicateList(t *testing.T) {
	volume := stocks("005930", "000660")
	value := stocks("000660", "005380")

	base := MergeUniverse(volume, value)
	withDup := MergeUniverse(volume, value, value)

	assert.Equal(t, codesOf(base), codesOf(withDup))
}

func TestFilterCrossPreservesFirstOrder(t *testing.T) {
	rising := stocks("247540", "005930", "035720", "005380")
	highVolume := stocks("005380", "005930")

	crossed := FilterCross(rising, highVolume)
	assert.Equal(t, []string{"005930", "005380"}, codesOf(crossed))
}

func TestFilterCrossEmpty(t *testing.T) {
	assert.Empty(t, FilterCross(stocks("005930"), nil))
	assert.Empty(t, FilterCross(nil, stocks("005930")))
}

func TestTopN(t *testing.T) {
	list := stocks("1", "2", "3")
	assert.Len(t, TopN(list, 2), 2)
	assert.Len(t, TopN(list, 5), 3)
}

func TestCodes(t *testing.T) {
	set := Codes(stocks("005930", "000660"))
	_, ok := set["005930"]
	assert.True(t, ok)
	assert.Len(t, set, 2)
}
