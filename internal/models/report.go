package models

import (
	"encoding/json"
	"time"
)

// PassReport 单个容器的解析报告
type PassReport struct {
	// 任务信息
	PassID       string     `json:"pass_id"`
	ContainerURL string     `json:"container_url"`
	Container    string     `json:"container"`
	Title        string     `json:"title"`
	Provider     string     `json:"provider,omitempty"` // 提供商过滤条件
	Status       PassStatus `json:"status"`
	Error        string     `json:"error,omitempty"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	Info  ContainerInfo `json:"info"`
	Stats PassStats     `json:"stats"`

	// 失败链接,留待下次重试
	FailedLinks []LinkCandidate `json:"failed_links"`
}

// NewPassReport 创建报告并分配唯一ID
func NewPassReport(containerURL, provider string) *PassReport {
	return &PassReport{
		PassID:       generateID(),
		ContainerURL: containerURL,
		Container:    ParseContainerCode(containerURL),
		Provider:     provider,
		Status:       PassStatusRunning,
		StartTime:    time.Now(),
		FailedLinks:  make([]LinkCandidate, 0),
	}
}

// Finish 根据结果结束报告
func (r *PassReport) Finish(links []ResolvedLink, err error) {
	r.EndTime = time.Now()
	r.Stats.Duration = r.EndTime.Sub(r.StartTime).Seconds()
	if err != nil {
		r.Status = PassStatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = PassStatusCompleted
	for _, link := range links {
		if link.Failed() {
			r.FailedLinks = append(r.FailedLinks, link.LinkCandidate)
		}
	}
}

// ToJSON 序列化为JSON
func (r *PassReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
