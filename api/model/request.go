package model

import (
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// 注册自定义校验规则
// notblank拒绝只包含空白字符的字段
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	}
}

// 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// QueryRequest 问答请求
type QueryRequest struct {
	Question string `json:"question" binding:"required,notblank"` // 问题内容
	K        int    `json:"k" binding:"omitempty,min=1,max=20"`   // 检索的分块数量，0使用默认值
}

// IngestRequest 知识库摄取请求
// mode为空时默认增量摄取
type IngestRequest struct {
	Mode string `json:"mode" binding:"omitempty,oneof=incremental reset"` // 摄取模式
}

// RunStatusRequest 摄取运行状态查询请求
type RunStatusRequest struct {
	ID string `uri:"id" binding:"required"` // 运行ID
}

// RunListRequest 摄取运行列表请求
type RunListRequest struct {
	PaginationRequest
}
