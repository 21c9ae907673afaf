package resolver

import (
	"context"
	"time"
)

// Element 页面元素句柄
type Element interface {
	// Text 返回元素文本内容
	Text() (string, error)

	// Attribute 读取属性,属性不存在时 ok=false
	Attribute(name string) (value string, ok bool, err error)

	// Query 查询第一个匹配的子元素,不存在时返回 nil, nil
	Query(selector string) (Element, error)

	// QueryAll 查询所有匹配的子元素
	QueryAll(selector string) ([]Element, error)
}

// Page 单个浏览器标签页(或弹窗)
//
// browser包基于go-rod实现在线版本,snapshot包基于goquery实现只读的静态版本。
// 所有方法失败时返回错误,由引擎按单条链接失败处理。
type Page interface {
	// WaitForSelector 等待选择器出现
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error

	// Query 查询第一个匹配元素,不存在时返回 nil, nil
	Query(selector string) (Element, error)

	// QueryAll 查询所有匹配元素
	QueryAll(selector string) ([]Element, error)

	// ClickForPopup 点击控件并等待其打开的弹窗
	// 弹窗监听在点击之前注册,避免错过快速打开的窗口
	ClickForPopup(ctx context.Context, control Element, timeout time.Duration) (Page, error)

	// WaitLoad 等待文档加载完成
	WaitLoad(ctx context.Context, timeout time.Duration) error

	// URL 当前地址
	URL() (string, error)

	// Close 关闭标签页
	Close() error
}

// RowHandles 行号 -> 下载按钮句柄
// 句柄只在一次页面扫描内有效,不随候选行序列化或持久化
type RowHandles map[int]Element

// Control 返回指定行的下载按钮,不存在时返回nil
func (h RowHandles) Control(index int) Element {
	if h == nil {
		return nil
	}
	return h[index]
}
