package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"disklink/internal/middleware"
	"disklink/internal/model"
	"disklink/internal/repository"
	"disklink/internal/service"
)

// TransferHandler 转存接口处理器
type TransferHandler struct {
	transferService service.TransferService
}

// NewTransferHandler 创建转存接口处理器
func NewTransferHandler(transferService service.TransferService) *TransferHandler {
	return &TransferHandler{
		transferService: transferService,
	}
}

// Request 受理转存请求
// POST /api/transfer
func (h *TransferHandler) Request(c *gin.Context) {
	var req model.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.BadRequest("参数错误: "+err.Error()))
		return
	}

	if req.DiskType != model.DiskTypeBaidu && req.DiskType != model.DiskTypeQuark {
		c.JSON(http.StatusBadRequest, model.BadRequest("不支持的网盘类型: "+req.DiskType))
		return
	}

	userID := middleware.CurrentUserID(c)

	resp, err := h.transferService.RequestTransfer(c.Request.Context(), &req, userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTransferInProgress):
			c.JSON(http.StatusConflict, model.Response{
				Code:    http.StatusConflict,
				Message: err.Error(),
			})
		case errors.Is(err, service.ErrQueueFull):
			c.JSON(http.StatusTooManyRequests, model.TooManyRequests(err.Error()))
		default:
			c.JSON(http.StatusBadRequest, model.BadRequest(err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, model.Success(resp))
}

// Status 查询转存状态
// GET /api/transfer/:id/status
func (h *TransferHandler) Status(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, model.BadRequest("无效的转存ID"))
		return
	}

	resp, err := h.transferService.GetStatus(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, model.NotFound("转存记录不存在"))
			return
		}
		c.JSON(http.StatusInternalServerError, model.ServerError("查询失败"))
		return
	}

	c.JSON(http.StatusOK, model.Success(resp))
}
