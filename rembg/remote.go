package rembg

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	nhttp "github.com/chaos-io/nobg/util/http"
)

// 远程推理服务遵循 KServe v2 REST 协议（Triton 等均支持）
type inferTensor struct {
	Name     string    `json:"name"`
	Shape    []int     `json:"shape"`
	Datatype string    `json:"datatype"`
	Data     []float32 `json:"data"`
}

type inferRequest struct {
	Inputs []inferTensor `json:"inputs"`
}

type inferResponse struct {
	ModelName string        `json:"model_name"`
	Outputs   []inferTensor `json:"outputs"`
}

type remoteEngine struct {
	baseURL string
	model   string
	cli     nhttp.IClient
}

// RemoteLoader 返回使用远程推理服务的 Loader，Loader 的参数是服务上的模型名。
// cli 为空时使用 2 分钟超时的默认客户端。
func RemoteLoader(baseURL string, cli nhttp.IClient) Loader {
	if cli == nil {
		cli = nhttp.NewHTTPClientWithTimeout(2 * time.Minute)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return func(ctx context.Context, model string) (Engine, error) {
		e := &remoteEngine{baseURL: baseURL, model: model, cli: cli}
		if err := e.ready(ctx); err != nil {
			return nil, err
		}
		return e, nil
	}
}

func (e *remoteEngine) ready(ctx context.Context) error {
	reqParam := &nhttp.RequestParam{
		RequestURI: e.baseURL + "/v2/health/ready",
		Method:     http.MethodGet,
		Timeout:    10 * time.Second,
	}
	if err := e.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return fmt.Errorf("inference server %s not ready: %w", e.baseURL, err)
	}
	return nil
}

func (e *remoteEngine) Run(ctx context.Context, input []float32) ([]float32, error) {
	resp := &inferResponse{}
	reqParam := &nhttp.RequestParam{
		RequestURI: fmt.Sprintf("%s/v2/models/%s/infer", e.baseURL, e.model),
		Method:     http.MethodPost,
		Header:     map[string]string{"Content-Type": "application/json"},
		Body: inferRequest{Inputs: []inferTensor{{
			Name:     InputName,
			Shape:    []int{1, 3, InputSize, InputSize},
			Datatype: "FP32",
			Data:     input,
		}}},
		Response: resp,
	}
	if err := e.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if len(resp.Outputs) == 0 {
		return nil, fmt.Errorf("model %s returned no outputs", e.model)
	}
	out := resp.Outputs[0]
	slog.Debug("remote inference done", "model", resp.ModelName, "output", out.Name, "shape", out.Shape)
	return out.Data, nil
}

func (e *remoteEngine) Close() error {
	return nil
}
