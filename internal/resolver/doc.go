// Package resolver 实现容器页面的链接解析引擎
//
// # 概述
//
// 引擎针对单个已加载的容器标签页工作,依次完成:
//
//  1. 安全验证等待 (GateResolver): 密码页与验证码页的有界轮询
//  2. 行枚举 (Enumerator): 读取链接表格,归一提供商别名,可按提供商过滤
//  3. 预过滤 (Merger.Prefilter): 已存储的链接直接复用,不再点击
//  4. 分批解析 (BatchResolver): 点击下载按钮拦截弹窗,读取真实地址,生成绕过地址
//  5. 合并 (Merge): 按页面行顺序输出结果
//
// # 页面访问
//
// 引擎只依赖 Page / Element 接口。browser 包基于 go-rod 提供在线实现,
// snapshot 包基于 goquery 提供只读的静态实现(用于 probe 命令)。
//
//	engine := resolver.NewEngine(cfg.Resolver, store,
//	    resolver.WithBatchLimiter(monitor),
//	    resolver.WithProgress(progressFactory),
//	)
//	result, err := engine.Resolve(ctx, page, "Send")
//	if errors.Is(err, models.ErrGateTimeout) { /* 放弃该容器 */ }
//
// # 并发
//
// 单个容器只使用一个标签页。并发只存在于批次内部: 同一批最多 batch_size 个弹窗
// 同时等待加载,批次之间固定等待 batch_delay。
//
// # 错误
//
// ErrLayoutMismatch / ErrGateTimeout / ErrStore 终止当前容器;
// 弹窗超时、加载超时等单条链接错误记为 "ERROR" 并继续。
package resolver
