// Package kubernetes provides an anchor.RemoteStore backed by a Kubernetes
// ConfigMap or Secret, watched through the Watch API.
package kubernetes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zoobzio/anchor"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/util/retry"
)

// ResourceType specifies the type of Kubernetes resource to store in.
type ResourceType int

const (
	// ConfigMap stores identifiers in a ConfigMap.
	ConfigMap ResourceType = iota
	// Secret stores identifiers in a Secret.
	Secret
)

// Store persists identifiers as data keys of one ConfigMap or Secret.
// The resource is created on the first Set if it does not exist.
type Store struct {
	client       kubernetes.Interface
	namespace    string
	name         string
	resourceType ResourceType
	retryWait    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithResourceType sets the resource type.
// Defaults to ConfigMap.
func WithResourceType(rt ResourceType) Option {
	return func(s *Store) {
		s.resourceType = rt
	}
}

// New creates a Store over the named resource in namespace.
func New(client kubernetes.Interface, namespace, name string, opts ...Option) *Store {
	s := &Store{
		client:       client,
		namespace:    namespace,
		name:         name,
		resourceType: ConfigMap,
		retryWait:    time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the data key of the resource. A missing resource or key is
// reported as not found.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	data, _, err := s.getData(ctx)
	if apierrors.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	value, ok := data[key]
	return value, ok, nil
}

// Set writes value to the data key, retrying on update conflicts.
func (s *Store) Set(ctx context.Context, key, value string) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		err := s.update(ctx, func(data map[string]string) {
			data[key] = value
		})
		if apierrors.IsNotFound(err) {
			return s.create(ctx, map[string]string{key: value})
		}
		return err
	})
}

// Delete removes the data key. The resource itself is kept.
func (s *Store) Delete(ctx context.Context, key string) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		err := s.update(ctx, func(data map[string]string) {
			delete(data, key)
		})
		if apierrors.IsNotFound(err) {
			return nil
		}
		return err
	})
}

// Synchronize is a no-op: the API server acknowledges writes once persisted.
func (*Store) Synchronize(_ context.Context) error {
	return nil
}

// Watch returns a channel notified whenever the data key changes or
// disappears after the call. Changes to other keys of the resource are
// ignored. The watch reconnects until ctx ends.
func (s *Store) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	data, version, err := s.getData(ctx)
	if err != nil && !apierrors.IsNotFound(err) {
		return nil, fmt.Errorf("failed to get initial value: %w", err)
	}
	last, present := data[key]

	out := make(chan struct{}, 1)

	go func() {
		defer close(out)

		observe := func(data map[string]string) {
			value, ok := data[key]
			if value != last || ok != present {
				last, present = value, ok
				anchor.Notify(out)
			}
		}

		for {
			err := s.watchLoop(ctx, version, observe)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				select {
				case <-time.After(s.retryWait):
				case <-ctx.Done():
					return
				}
			}

			// Catch up on anything missed while disconnected
			data, v, err := s.getData(ctx)
			switch {
			case err == nil:
				version = v
				observe(data)
			case apierrors.IsNotFound(err):
				version = ""
				observe(nil)
			}
		}
	}()

	return out, nil
}

func (s *Store) watchLoop(ctx context.Context, version string, observe func(map[string]string)) error {
	opts := metav1.ListOptions{
		FieldSelector:   fmt.Sprintf("metadata.name=%s", s.name),
		ResourceVersion: version,
		Watch:           true,
	}

	var (
		watcher watch.Interface
		err     error
	)
	if s.resourceType == ConfigMap {
		watcher, err = s.client.CoreV1().ConfigMaps(s.namespace).Watch(ctx, opts)
	} else {
		watcher, err = s.client.CoreV1().Secrets(s.namespace).Watch(ctx, opts)
	}
	if err != nil {
		return fmt.Errorf("failed to start watch: %w", err)
	}
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.ResultChan():
			if !ok {
				return errors.New("watch channel closed")
			}

			switch event.Type {
			case watch.Error:
				return errors.New("watch error")
			case watch.Deleted:
				observe(nil)
			case watch.Added, watch.Modified:
				if data, ok := s.extractData(event.Object); ok {
					observe(data)
				}
			}
		}
	}
}

func (s *Store) getData(ctx context.Context) (map[string]string, string, error) {
	if s.resourceType == ConfigMap {
		cm, err := s.client.CoreV1().ConfigMaps(s.namespace).Get(ctx, s.name, metav1.GetOptions{})
		if err != nil {
			return nil, "", err
		}
		return cm.Data, cm.ResourceVersion, nil
	}

	secret, err := s.client.CoreV1().Secrets(s.namespace).Get(ctx, s.name, metav1.GetOptions{})
	if err != nil {
		return nil, "", err
	}
	return secretData(secret), secret.ResourceVersion, nil
}

func (s *Store) extractData(obj runtime.Object) (map[string]string, bool) {
	if s.resourceType == ConfigMap {
		if cm, ok := obj.(*corev1.ConfigMap); ok && cm.Name == s.name {
			return cm.Data, true
		}
	} else {
		if secret, ok := obj.(*corev1.Secret); ok && secret.Name == s.name {
			return secretData(secret), true
		}
	}
	return nil, false
}

func (s *Store) update(ctx context.Context, mutate func(map[string]string)) error {
	if s.resourceType == ConfigMap {
		cms := s.client.CoreV1().ConfigMaps(s.namespace)
		cm, err := cms.Get(ctx, s.name, metav1.GetOptions{})
		if err != nil {
			return err
		}
		cm = cm.DeepCopy()
		if cm.Data == nil {
			cm.Data = make(map[string]string)
		}
		mutate(cm.Data)
		_, err = cms.Update(ctx, cm, metav1.UpdateOptions{})
		return err
	}

	secrets := s.client.CoreV1().Secrets(s.namespace)
	secret, err := secrets.Get(ctx, s.name, metav1.GetOptions{})
	if err != nil {
		return err
	}
	secret = secret.DeepCopy()
	data := secretData(secret)
	mutate(data)
	secret.Data = make(map[string][]byte, len(data))
	for k, v := range data {
		secret.Data[k] = []byte(v)
	}
	secret.StringData = nil
	_, err = secrets.Update(ctx, secret, metav1.UpdateOptions{})
	return err
}

func (s *Store) create(ctx context.Context, data map[string]string) error {
	meta := metav1.ObjectMeta{Name: s.name, Namespace: s.namespace}
	if s.resourceType == ConfigMap {
		_, err := s.client.CoreV1().ConfigMaps(s.namespace).Create(ctx, &corev1.ConfigMap{
			ObjectMeta: meta,
			Data:       data,
		}, metav1.CreateOptions{})
		return asConflict(err, "configmaps")
	}

	encoded := make(map[string][]byte, len(data))
	for k, v := range data {
		encoded[k] = []byte(v)
	}
	_, err := s.client.CoreV1().Secrets(s.namespace).Create(ctx, &corev1.Secret{
		ObjectMeta: meta,
		Data:       encoded,
	}, metav1.CreateOptions{})
	return asConflict(err, "secrets")
}

// asConflict turns AlreadyExists into a Conflict so a concurrent create is
// retried as an update.
func asConflict(err error, resource string) error {
	if apierrors.IsAlreadyExists(err) {
		return apierrors.NewConflict(corev1.Resource(resource), "", err)
	}
	return err
}

func secretData(secret *corev1.Secret) map[string]string {
	if secret.Data == nil {
		return nil
	}
	data := make(map[string]string, len(secret.Data))
	for k, v := range secret.Data {
		data[k] = string(v)
	}
	return data
}

var _ anchor.RemoteStore = (*Store)(nil)
