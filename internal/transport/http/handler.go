package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/payment-ledger/internal/model"
	"github.com/richardliu001/payment-ledger/internal/repo"
	"github.com/richardliu001/payment-ledger/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger is the subset of service.TransactionService served over HTTP.
type Ledger interface {
	CreateTransaction(ctx context.Context, req service.CreateTransactionRequest) (*model.PaymentTransaction, error)
	GetTransaction(ctx context.Context, id uint64) (*model.PaymentTransaction, error)
	ListTransactions(ctx context.Context, f repo.TransactionFilter) ([]model.PaymentTransaction, error)
	GetDetailRecords(ctx context.Context, id uint64) ([]model.DetailRecord, error)
	AddDetailRecord(ctx context.Context, id uint64, creatorID *uint64, content string, extraData map[string]interface{}) (*model.DetailRecord, error)
	SetLastError(ctx context.Context, id uint64, message string) error
	Process(ctx context.Context, id uint64, externalSerial string, state model.TransactionState) error
}

// ApiAdmin manages the payment api catalog.
type ApiAdmin interface {
	GetApiById(ctx context.Context, id uint64) (*model.PaymentApi, error)
	SaveApi(ctx context.Context, api *model.PaymentApi) error
	DeleteApi(ctx context.Context, id uint64) error
	ListApis(ctx context.Context) ([]model.PaymentApi, error)
}

func RegisterHandlers(r gin.IRouter, ledger Ledger, apis ApiAdmin, log *zap.SugaredLogger) {
	v1 := r.Group("/v1")
	{
		v1.POST("/transactions", createTransactionHandler(ledger, log))
		v1.GET("/transactions", listTransactionsHandler(ledger, log))
		v1.GET("/transactions/:id", getTransactionHandler(ledger, log))
		v1.GET("/transactions/:id/records", listRecordsHandler(ledger, log))
		v1.POST("/transactions/:id/records", addRecordHandler(ledger, log))
		v1.POST("/transactions/:id/error", setErrorHandler(ledger, log))
		v1.POST("/transactions/:id/process", processHandler(ledger, log))

		v1.POST("/apis", saveApiHandler(apis, log))
		v1.GET("/apis", listApisHandler(apis, log))
		v1.GET("/apis/:id", getApiHandler(apis, log))
		v1.DELETE("/apis/:id", deleteApiHandler(apis, log))
	}
}

func pathID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

type createTransactionReq struct {
	Type         string                 `json:"type"`
	ApiID        uint64                 `json:"api_id"`
	Amount       string                 `json:"amount" binding:"required"`
	CurrencyType string                 `json:"currency_type"`
	PayerID      *uint64                `json:"payer_id"`
	PayeeID      *uint64                `json:"payee_id"`
	RelatedID    *uint64                `json:"related_id"`
	Description  string                 `json:"description"`
	ExtraData    map[string]interface{} `json:"extra_data"`
}

func createTransactionHandler(ledger Ledger, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createTransactionReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		amt, err := decimal.NewFromString(req.Amount)
		if err != nil {
			badRequest(c, "invalid amount")
			return
		}
		t, err := ledger.CreateTransaction(c, service.CreateTransactionRequest{
			Type:         req.Type,
			ApiID:        req.ApiID,
			Amount:       amt,
			CurrencyType: req.CurrencyType,
			PayerID:      req.PayerID,
			PayeeID:      req.PayeeID,
			RelatedID:    req.RelatedID,
			Description:  req.Description,
			ExtraData:    req.ExtraData,
		})
		if err != nil {
			if t != nil && service.IsHandlerFailure(err) {
				// persisted, but a downstream handler failed
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "code": "handler_failure", "transaction": t})
				return
			}
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

func listTransactionsHandler(ledger Ledger, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit <= 0 {
			badRequest(c, "invalid limit")
			return
		}
		f := repo.TransactionFilter{Type: c.Query("type"), Limit: limit}
		if s := c.Query("state"); s != "" {
			st, err := model.ParseTransactionState(s)
			if err != nil {
				badRequest(c, err.Error())
				return
			}
			f.State = st
		}
		txs, err := ledger.ListTransactions(c, f)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, txs)
	}
}

func getTransactionHandler(ledger Ledger, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		t, err := ledger.GetTransaction(c, id)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func listRecordsHandler(ledger Ledger, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		recs, err := ledger.GetDetailRecords(c, id)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, recs)
	}
}

type addRecordReq struct {
	CreatorID *uint64                `json:"creator_id"`
	Content   string                 `json:"content"`
	ExtraData map[string]interface{} `json:"extra_data"`
}

func addRecordHandler(ledger Ledger, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req addRecordReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		rec, err := ledger.AddDetailRecord(c, id, req.CreatorID, req.Content, req.ExtraData)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, rec)
	}
}

type setErrorReq struct {
	Message string `json:"message" binding:"required"`
}

func setErrorHandler(ledger Ledger, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req setErrorReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := ledger.SetLastError(c, id, req.Message); err != nil {
			writeError(c, log, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type processReq struct {
	ExternalSerial string `json:"external_serial"`
	State          string `json:"state" binding:"required"`
}

func processHandler(ledger Ledger, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req processReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := ledger.Process(c, id, req.ExternalSerial, model.TransactionState(req.State)); err != nil {
			writeError(c, log, err)
			return
		}
		t, err := ledger.GetTransaction(c, id)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

type saveApiReq struct {
	ID                      uint64   `json:"id"`
	Name                    string   `json:"name"`
	Type                    string   `json:"type"`
	SupportTransactionTypes []string `json:"support_transaction_types"`
}

func saveApiHandler(apis ApiAdmin, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req saveApiReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		api := &model.PaymentApi{
			ID:                      req.ID,
			Name:                    req.Name,
			Type:                    req.Type,
			SupportTransactionTypes: req.SupportTransactionTypes,
		}
		if err := apis.SaveApi(c, api); err != nil {
			writeError(c, log, err)
			return
		}
		status := http.StatusOK
		if req.ID == 0 {
			status = http.StatusCreated
		}
		c.JSON(status, api)
	}
}

func listApisHandler(apis ApiAdmin, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := apis.ListApis(c)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func getApiHandler(apis ApiAdmin, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		api, err := apis.GetApiById(c, id)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, api)
	}
}

func deleteApiHandler(apis ApiAdmin, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := apis.DeleteApi(c, id); err != nil {
			writeError(c, log, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
