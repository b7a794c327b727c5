package sandbox

import (
	"context"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestKubernetesBackend_Create(t *testing.T) {
	t.Parallel()

	cs := fake.NewSimpleClientset()
	b := NewKubernetesBackend(cs, WithNamespace("sandbox"))

	id, err := b.Create(context.Background(), Spec{
		Name:    "sysagent-abc",
		Image:   DefaultImage,
		Command: []string{"/bin/sh", "-c", "ls"},
		Env:     []string{"A=1", "=skip", "B=x=y"},
		Limits:  Limits{MemoryBytes: 64 << 20, NanoCPUs: 500_000_000},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	pod, err := cs.CoreV1().Pods("sandbox").Get(context.Background(), id, metav1.GetOptions{})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if pod.Spec.RestartPolicy != corev1.RestartPolicyNever {
		t.Errorf("RestartPolicy = %s", pod.Spec.RestartPolicy)
	}
	c := pod.Spec.Containers[0]
	if c.Image != DefaultImage || len(c.Command) != 3 || c.Stdin {
		t.Errorf("container = %+v", c)
	}
	if len(c.Env) != 2 || c.Env[1].Value != "x=y" {
		t.Errorf("Env = %+v", c.Env)
	}
	if got := c.Resources.Limits.Cpu().MilliValue(); got != 500 {
		t.Errorf("cpu limit = %dm, want 500m", got)
	}
	if got := c.Resources.Limits.Memory().Value(); got != 64<<20 {
		t.Errorf("memory limit = %d", got)
	}
}

func TestKubernetesBackend_WaitLogsRemove(t *testing.T) {
	t.Parallel()

	cs := fake.NewSimpleClientset()
	b := NewKubernetesBackend(cs, WithPollInterval(5*time.Millisecond))
	ctx := context.Background()

	id, err := b.Create(ctx, Spec{Name: "p1", Image: "img", Command: []string{"true"}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := b.Start(ctx, id); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		pod, err := cs.CoreV1().Pods("default").Get(ctx, id, metav1.GetOptions{})
		if err != nil {
			return
		}
		pod.Status.Phase = corev1.PodFailed
		pod.Status.ContainerStatuses = []corev1.ContainerStatus{{
			Name: podContainerName,
			State: corev1.ContainerState{
				Terminated: &corev1.ContainerStateTerminated{ExitCode: 3},
			},
		}}
		_, _ = cs.CoreV1().Pods("default").UpdateStatus(ctx, pod, metav1.UpdateOptions{})
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	code, err := b.Wait(waitCtx, id)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}

	logs, err := b.Logs(ctx, id)
	if err != nil {
		t.Fatalf("Logs() error = %v", err)
	}
	if len(logs) == 0 {
		t.Error("Logs() returned nothing")
	}

	if err := b.Remove(ctx, id); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := cs.CoreV1().Pods("default").Get(ctx, id, metav1.GetOptions{}); !apierrors.IsNotFound(err) {
		t.Errorf("pod still present: %v", err)
	}
	if err := b.Remove(ctx, id); err != nil {
		t.Errorf("second Remove() error = %v, want nil", err)
	}
}

func TestKubernetesBackend_WaitFatalReason(t *testing.T) {
	t.Parallel()

	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "bad", Namespace: "default"},
		Status: corev1.PodStatus{
			Phase: corev1.PodPending,
			ContainerStatuses: []corev1.ContainerStatus{{
				Name: podContainerName,
				State: corev1.ContainerState{
					Waiting: &corev1.ContainerStateWaiting{Reason: "ErrImagePull", Message: "not found"},
				},
			}},
		},
	}
	b := NewKubernetesBackend(fake.NewSimpleClientset(pod), WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := b.Wait(ctx, "bad"); err == nil {
		t.Error("Wait() error = nil, want image pull error")
	}
}

func TestKubernetesBackend_WaitTimesOut(t *testing.T) {
	t.Parallel()

	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "slow", Namespace: "default"},
		Status:     corev1.PodStatus{Phase: corev1.PodRunning},
	}
	b := NewKubernetesBackend(fake.NewSimpleClientset(pod), WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := b.Wait(ctx, "slow"); err == nil {
		t.Error("Wait() error = nil, want context error")
	}
}
