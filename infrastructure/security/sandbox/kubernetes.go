package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const podContainerName = "sandbox"

// Waiting reasons that will not resolve by themselves.
var fatalWaitingReasons = map[string]bool{
	"ErrImagePull":               true,
	"ImagePullBackOff":           true,
	"InvalidImageName":           true,
	"CreateContainerConfigError": true,
	"CreateContainerError":       true,
}

// KubernetesBackend runs units as single-container pods.
type KubernetesBackend struct {
	client       kubernetes.Interface
	namespace    string
	pollInterval time.Duration
}

// KubernetesOption configures a KubernetesBackend.
type KubernetesOption func(*KubernetesBackend)

// WithNamespace sets the namespace pods are created in.
func WithNamespace(ns string) KubernetesOption {
	return func(b *KubernetesBackend) {
		if ns != "" {
			b.namespace = ns
		}
	}
}

// WithPollInterval sets how often pod status is checked.
func WithPollInterval(d time.Duration) KubernetesOption {
	return func(b *KubernetesBackend) {
		if d > 0 {
			b.pollInterval = d
		}
	}
}

// NewKubernetesBackend wraps an existing clientset.
func NewKubernetesBackend(client kubernetes.Interface, opts ...KubernetesOption) *KubernetesBackend {
	b := &KubernetesBackend{
		client:       client,
		namespace:    "default",
		pollInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewKubernetesBackendFromKubeconfig builds a clientset from a kubeconfig
// path, falling back to in-cluster configuration when the path is empty.
func NewKubernetesBackendFromKubeconfig(kubeconfig string, opts ...KubernetesOption) (*KubernetesBackend, error) {
	var (
		cfg *rest.Config
		err error
	)
	if kubeconfig == "" {
		cfg, err = rest.InClusterConfig()
	} else {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("kubernetes config: %w", err)
	}

	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("kubernetes client: %w", err)
	}
	return NewKubernetesBackend(cs, opts...), nil
}

// Name implements Backend.
func (b *KubernetesBackend) Name() string {
	return "kubernetes"
}

// Create implements Backend. Pods start as soon as they are scheduled.
func (b *KubernetesBackend) Create(ctx context.Context, spec Spec) (string, error) {
	if len(spec.Command) == 0 {
		return "", ErrEmptyCommand
	}

	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: b.namespace,
			Labels:    spec.Labels,
		},
		Spec: corev1.PodSpec{
			RestartPolicy:                corev1.RestartPolicyNever,
			AutomountServiceAccountToken: boolPtr(false),
			EnableServiceLinks:           boolPtr(false),
			Containers: []corev1.Container{{
				Name:      podContainerName,
				Image:     spec.Image,
				Command:   spec.Command,
				Env:       envVars(spec.Env),
				Stdin:     false,
				Resources: podResources(spec.Limits),
			}},
		},
	}

	created, err := b.client.CoreV1().Pods(b.namespace).Create(ctx, pod, metav1.CreateOptions{})
	if err != nil {
		return "", err
	}
	return created.Name, nil
}

// Start implements Backend.
func (b *KubernetesBackend) Start(context.Context, string) error {
	return nil
}

// Wait implements Backend.
func (b *KubernetesBackend) Wait(ctx context.Context, id string) (int, error) {
	exitCode := -1
	err := wait.PollUntilContextCancel(ctx, b.pollInterval, true, func(ctx context.Context) (bool, error) {
		pod, err := b.client.CoreV1().Pods(b.namespace).Get(ctx, id, metav1.GetOptions{})
		if err != nil {
			return false, err
		}

		for _, cs := range pod.Status.ContainerStatuses {
			if cs.Name != podContainerName {
				continue
			}
			if w := cs.State.Waiting; w != nil && fatalWaitingReasons[w.Reason] {
				return false, fmt.Errorf("%s: %s", w.Reason, w.Message)
			}
			if t := cs.State.Terminated; t != nil {
				exitCode = int(t.ExitCode)
				return true, nil
			}
		}

		switch pod.Status.Phase {
		case corev1.PodSucceeded:
			exitCode = 0
			return true, nil
		case corev1.PodFailed:
			exitCode = 1
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return -1, err
	}
	return exitCode, nil
}

// Logs implements Backend.
func (b *KubernetesBackend) Logs(ctx context.Context, id string) ([]byte, error) {
	req := b.client.CoreV1().Pods(b.namespace).GetLogs(id, &corev1.PodLogOptions{
		Container: podContainerName,
	})
	stream, err := req.Stream(ctx)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, stream); err != nil {
		return buf.Bytes(), err
	}
	return buf.Bytes(), nil
}

// Remove implements Backend.
func (b *KubernetesBackend) Remove(ctx context.Context, id string) error {
	grace := int64(0)
	err := b.client.CoreV1().Pods(b.namespace).Delete(ctx, id, metav1.DeleteOptions{
		GracePeriodSeconds: &grace,
	})
	if apierrors.IsNotFound(err) {
		return nil
	}
	return err
}

func podResources(l Limits) corev1.ResourceRequirements {
	limits := corev1.ResourceList{}
	if l.MemoryBytes > 0 {
		limits[corev1.ResourceMemory] = *resource.NewQuantity(l.MemoryBytes, resource.BinarySI)
	}
	if l.NanoCPUs > 0 {
		limits[corev1.ResourceCPU] = *resource.NewMilliQuantity(l.NanoCPUs/1_000_000, resource.DecimalSI)
	}
	if len(limits) == 0 {
		return corev1.ResourceRequirements{}
	}
	return corev1.ResourceRequirements{Limits: limits}
}

func envVars(env []string) []corev1.EnvVar {
	if len(env) == 0 {
		return nil
	}
	out := make([]corev1.EnvVar, 0, len(env))
	for _, kv := range env {
		name, value, _ := strings.Cut(kv, "=")
		if name == "" {
			continue
		}
		out = append(out, corev1.EnvVar{Name: name, Value: value})
	}
	return out
}

func boolPtr(b bool) *bool {
	return &b
}

var _ Backend = (*KubernetesBackend)(nil)
