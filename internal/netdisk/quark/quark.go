package quark

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"disklink/internal/model"
	"disklink/internal/netdisk"
	"disklink/internal/pkg/logger"
)

var (
	shareURLPattern = regexp.MustCompile(`pan\.quark\.cn/s/([a-zA-Z0-9]+)`)
	passwordPattern = regexp.MustCompile(`[?&]pwd=([a-zA-Z0-9]+)`)
)

// Client 夸克网盘客户端
type Client struct {
	cookie       string
	httpClient   *http.Client
	baseURL      string
	taskInterval time.Duration
	taskMaxWait  time.Duration
}

// NewClient 创建夸克网盘客户端
func NewClient(cookie string, taskInterval, taskMaxWait time.Duration) *Client {
	return &Client{
		cookie:       cookie,
		baseURL:      "https://drive-pc.quark.cn",
		taskInterval: taskInterval,
		taskMaxWait:  taskMaxWait,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name 获取网盘名称
func (c *Client) Name() string {
	return model.DiskTypeQuark
}

// IsConfigured 检查是否已配置凭证
func (c *Client) IsConfigured() bool {
	return c.cookie != ""
}

// ParseShare 解析夸克分享链接
// 示例: https://pan.quark.cn/s/abc123def456?pwd=xyz9
func (c *Client) ParseShare(rawURL string) (*model.ShareInfo, error) {
	m := shareURLPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return nil, netdisk.ErrInvalidLinkFormat
	}

	password := ""
	if pm := passwordPattern.FindStringSubmatch(rawURL); pm != nil {
		password = pm[1]
	}

	return model.NewShareInfo(m[1], password, rawURL), nil
}

// ListFiles 枚举分享中的顶层文件
func (c *Client) ListFiles(ctx context.Context, share *model.ShareInfo) ([]model.FileRef, error) {
	stoken, err := c.getStoken(ctx, share.ShareID, share.Password)
	if err != nil {
		return nil, err
	}
	share.Extra["stoken"] = stoken

	params := url.Values{
		"pr":            {"ucpro"},
		"fr":            {"pc"},
		"uc_param_str":  {""},
		"pwd_id":        {share.ShareID},
		"stoken":        {stoken},
		"pdir_fid":      {"0"},
		"force":         {"0"},
		"_page":         {"1"},
		"_size":         {"100"},
		"_fetch_share":  {"1"},
		"_fetch_total":  {"1"},
		"_sort":         {"file_type:asc,updated_at:desc"},
	}

	var result struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
		Data    struct {
			List []struct {
				Fid           string `json:"fid"`
				FileName      string `json:"file_name"`
				Dir           bool   `json:"dir"`
				ShareFidToken string `json:"share_fid_token"`
			} `json:"list"`
		} `json:"data"`
	}

	if err := c.doRequest(ctx, "GET", "/1/clouddrive/share/sharepage/detail", params, nil, &result); err != nil {
		return nil, err
	}

	if result.Status != 200 {
		return nil, fmt.Errorf("获取分享详情失败: %s", result.Message)
	}

	files := make([]model.FileRef, 0, len(result.Data.List))
	for _, f := range result.Data.List {
		files = append(files, model.FileRef{
			ID:    f.Fid,
			Token: f.ShareFidToken,
			Name:  f.FileName,
			IsDir: f.Dir,
		})
	}

	if len(files) == 0 {
		return nil, netdisk.ErrNoFilesFound
	}

	return files, nil
}

// SaveFiles 逐个文件转存,允许部分成功
func (c *Client) SaveFiles(ctx context.Context, share *model.ShareInfo, files []model.FileRef) (*model.SaveResult, error) {
	stoken := share.Extra["stoken"]
	if stoken == "" {
		s, err := c.getStoken(ctx, share.ShareID, share.Password)
		if err != nil {
			return nil, err
		}
		stoken = s
	}

	result := &model.SaveResult{}
	for _, f := range files {
		savedIDs, err := c.saveOne(ctx, share.ShareID, stoken, f)
		if err != nil {
			logger.Warn("单个文件转存失败",
				zap.String("file", f.Name),
				zap.Error(err))
			result.Failed = append(result.Failed, model.SaveFailure{File: f, Reason: err.Error()})
			continue
		}
		result.SavedIDs = append(result.SavedIDs, savedIDs...)
	}

	return result, nil
}

// saveOne 转存单个文件并等待转存任务结束,返回落到自己账号的文件ID
func (c *Client) saveOne(ctx context.Context, pwdID, stoken string, file model.FileRef) ([]string, error) {
	params := url.Values{
		"entry":        {"update_share"},
		"pr":           {"ucpro"},
		"fr":           {"pc"},
		"uc_param_str": {""},
	}

	body := map[string]interface{}{
		"fid_list":       []string{file.ID},
		"fid_token_list": []string{file.Token},
		"to_pdir_fid":    "0",
		"pwd_id":         pwdID,
		"stoken":         stoken,
		"pdir_fid":       "0",
		"scene":          "link",
	}

	var result struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
		Data    struct {
			TaskID string `json:"task_id"`
		} `json:"data"`
	}

	if err := c.doRequest(ctx, "POST", "/1/clouddrive/share/sharepage/save", params, body, &result); err != nil {
		return nil, err
	}

	if result.Status != 200 {
		if strings.Contains(result.Message, "capacity limit") {
			return nil, fmt.Errorf("网盘容量不足")
		}
		return nil, fmt.Errorf("转存请求失败: %s", result.Message)
	}

	var savedIDs []string
	_, err := netdisk.WaitForTask(ctx, c.taskInterval, c.taskMaxWait, func(ctx context.Context) (netdisk.TaskState, string, error) {
		status, err := c.queryTask(ctx, result.Data.TaskID)
		if err != nil {
			return netdisk.TaskRunning, "", err
		}
		switch status.State {
		case "FINISH":
			savedIDs = status.SavedFids
			return netdisk.TaskFinished, status.ShareID, nil
		case "FAILED":
			return netdisk.TaskFailed, "", nil
		default:
			return netdisk.TaskRunning, "", nil
		}
	})
	if err != nil {
		return nil, err
	}

	return savedIDs, nil
}

// taskStatus 异步任务查询结果
type taskStatus struct {
	State     string
	ShareID   string
	SavedFids []string
}

// queryTask 查询一次异步任务状态
func (c *Client) queryTask(ctx context.Context, taskID string) (*taskStatus, error) {
	params := url.Values{
		"pr":           {"ucpro"},
		"fr":           {"pc"},
		"uc_param_str": {""},
		"task_id":      {taskID},
	}

	var result struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Status  int    `json:"status"`
			ShareID string `json:"share_id"`
			SaveAs  struct {
				SaveAsTopFids []string `json:"save_as_top_fids"`
			} `json:"save_as"`
		} `json:"data"`
	}

	if err := c.doRequest(ctx, "GET", "/1/clouddrive/task", params, nil, &result); err != nil {
		return nil, err
	}

	if result.Status != 200 {
		return nil, fmt.Errorf("查询任务失败: %s", result.Message)
	}

	// data.status: 2=完成, 1=失败, 其他=进行中
	switch result.Data.Status {
	case 2:
		return &taskStatus{
			State:     "FINISH",
			ShareID:   result.Data.ShareID,
			SavedFids: result.Data.SaveAs.SaveAsTopFids,
		}, nil
	case 1:
		return &taskStatus{State: "FAILED"}, nil
	default:
		return &taskStatus{State: "RUNNING"}, nil
	}
}

// CreateShare 对转存后的文件创建新分享,返回带提取码的链接
func (c *Client) CreateShare(ctx context.Context, fileIDs []string, expireHours int) (string, error) {
	if len(fileIDs) == 0 {
		return "", netdisk.ErrShareCreationFailed
	}

	params := url.Values{
		"pr":           {"ucpro"},
		"fr":           {"pc"},
		"uc_param_str": {""},
	}

	passcode := randPassCode()
	body := map[string]interface{}{
		"fid_list":     fileIDs,
		"expired_type": expiredTypeFromHours(expireHours),
		"url_type":     2,
		"passcode":     passcode,
	}

	var result struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
		Data    struct {
			TaskID string `json:"task_id"`
		} `json:"data"`
	}

	if err := c.doRequest(ctx, "POST", "/1/clouddrive/share", params, body, &result); err != nil {
		return "", err
	}

	if result.Status != 200 {
		return "", fmt.Errorf("%w: %s", netdisk.ErrShareCreationFailed, result.Message)
	}

	shareID, err := netdisk.WaitForTask(ctx, c.taskInterval, c.taskMaxWait, func(ctx context.Context) (netdisk.TaskState, string, error) {
		status, err := c.queryTask(ctx, result.Data.TaskID)
		if err != nil {
			return netdisk.TaskRunning, "", err
		}
		switch status.State {
		case "FINISH":
			return netdisk.TaskFinished, status.ShareID, nil
		case "FAILED":
			return netdisk.TaskFailed, "", nil
		default:
			return netdisk.TaskRunning, "", nil
		}
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", netdisk.ErrShareCreationFailed, err)
	}

	shareURL, pwd, err := c.getSharePassword(ctx, shareID)
	if err != nil {
		return "", err
	}

	if pwd != "" {
		return shareURL + "?pwd=" + pwd, nil
	}
	return shareURL, nil
}

// getSharePassword 获取分享链接和提取码
func (c *Client) getSharePassword(ctx context.Context, shareID string) (string, string, error) {
	params := url.Values{
		"pr":           {"ucpro"},
		"fr":           {"pc"},
		"uc_param_str": {""},
	}

	body := map[string]string{
		"share_id": shareID,
	}

	var result struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
		Data    struct {
			ShareURL string `json:"share_url"`
			PassCode string `json:"passcode"`
		} `json:"data"`
	}

	if err := c.doRequest(ctx, "POST", "/1/clouddrive/share/password", params, body, &result); err != nil {
		return "", "", err
	}

	if result.Status != 200 {
		return "", "", fmt.Errorf("获取分享密码失败: %s", result.Message)
	}

	return result.Data.ShareURL, result.Data.PassCode, nil
}

// DeleteShare 撤销分享,先在自己的分享列表中匹配share_id
func (c *Client) DeleteShare(ctx context.Context, shareURL string) error {
	m := shareURLPattern.FindStringSubmatch(shareURL)
	if m == nil {
		return netdisk.ErrInvalidLinkFormat
	}
	pwdID := m[1]

	params := url.Values{
		"pr":           {"ucpro"},
		"fr":           {"pc"},
		"uc_param_str": {""},
		"_page":        {"1"},
		"_size":        {"100"},
		"_order_field": {"created_at"},
		"_order_type":  {"desc"},
		"_fetch_total": {"1"},
	}

	var listResult struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
		Data    struct {
			List []struct {
				ShareID  string `json:"share_id"`
				ShareURL string `json:"share_url"`
			} `json:"list"`
		} `json:"data"`
	}

	if err := c.doRequest(ctx, "GET", "/1/clouddrive/share/mypage/detail", params, nil, &listResult); err != nil {
		return err
	}

	if listResult.Status != 200 {
		return fmt.Errorf("获取分享列表失败: %s", listResult.Message)
	}

	shareID := ""
	for _, s := range listResult.Data.List {
		if strings.Contains(s.ShareURL, "/s/"+pwdID) {
			shareID = s.ShareID
			break
		}
	}
	if shareID == "" {
		// 分享已不存在,视为删除成功
		return nil
	}

	body := map[string]interface{}{
		"share_ids": []string{shareID},
	}

	var delResult struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	}

	if err := c.doRequest(ctx, "POST", "/1/clouddrive/share/delete", params, body, &delResult); err != nil {
		return err
	}

	if delResult.Status != 200 {
		return fmt.Errorf("删除分享失败: %s", delResult.Message)
	}

	return nil
}

// ValidateCredentials 通过查询容量接口验证Cookie是否有效
func (c *Client) ValidateCredentials(ctx context.Context) error {
	params := url.Values{
		"pr":           {"ucpro"},
		"fr":           {"pc"},
		"uc_param_str": {""},
	}

	var result struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	}

	if err := c.doRequest(ctx, "GET", "/1/clouddrive/member/capacity", params, nil, &result); err != nil {
		return err
	}

	if result.Status != 200 {
		return fmt.Errorf("%w: %s", netdisk.ErrAuthExpired, result.Message)
	}

	return nil
}

// getStoken 获取分享访问凭证
func (c *Client) getStoken(ctx context.Context, pwdID, passcode string) (string, error) {
	params := url.Values{
		"pr":           {"ucpro"},
		"fr":           {"pc"},
		"uc_param_str": {""},
	}

	body := map[string]string{
		"passcode": passcode,
		"pwd_id":   pwdID,
	}

	var result struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Stoken string `json:"stoken"`
		} `json:"data"`
	}

	if err := c.doRequest(ctx, "POST", "/1/clouddrive/share/sharepage/token", params, body, &result); err != nil {
		return "", err
	}

	if result.Status != 200 {
		return "", fmt.Errorf("获取stoken失败: %s", result.Message)
	}

	// stoken中的空格实际是+号,URL解码时被还原了
	return strings.ReplaceAll(result.Data.Stoken, " ", "+"), nil
}

// doRequest 执行HTTP请求
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, body interface{}, result interface{}) error {
	urlStr := c.baseURL + path
	if len(params) > 0 {
		urlStr += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求体失败: %w", err)
		}
		reqBody = strings.NewReader(string(jsonData))
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}

	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("Referer", "https://pan.quark.cn/")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Cookie", c.cookie)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return netdisk.ErrAuthExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &netdisk.TransportError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return &netdisk.ResponseParseError{Cause: err, Body: string(respBody)}
	}

	return nil
}

// expiredTypeFromHours 将有效期小时数映射到夸克的过期类型
// 1=1天, 2=7天, 3=30天, 4=永久
func expiredTypeFromHours(hours int) int {
	switch {
	case hours <= 24:
		return 1
	case hours <= 168:
		return 2
	case hours <= 720:
		return 3
	default:
		return 4
	}
}

const passCodeChars = "abcdefghijklmnopqrstuvwxyz0123456789"

// randPassCode 生成4位随机提取码
func randPassCode() string {
	b := make([]byte, 4)
	for i := range b {
		b[i] = passCodeChars[rand.Intn(len(passCodeChars))]
	}
	return string(b)
}
