package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOKPage_TotalPages(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		total    int64
		pageSize int
		want     int
		wantSize int
	}{
		{0, 20, 0, 20},
		{20, 20, 1, 20},
		{21, 20, 2, 20},
		{5, 0, 1, defaultPageSize},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		OKPage(c, []int{}, tt.total, 1, tt.pageSize)

		var body struct {
			Data PageData `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tt.want, body.Data.Pagination.TotalPages, "total=%d", tt.total)
		assert.Equal(t, tt.wantSize, body.Data.Pagination.PageSize)
	}
}

func TestConflictWithData(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	ConflictWithData(c, 10008, "存在重叠", map[string]string{"conflict_tranche_id": "t-1"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"code":10008,"message":"存在重叠","data":{"conflict_tranche_id":"t-1"}}`, w.Body.String())
}
