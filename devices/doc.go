// Package devices implements the device negotiator: the single component
// through which every microphone, camera, virtual background, and speaker
// change reaches the media transport.
//
// The negotiator guarantees exactly one in-flight transport operation per
// device class. Classes are serialized independently — an audio-input change
// never waits on a camera change — by giving each class its own mutex, so a
// second call for the same class blocks until the first has fully applied.
//
// Enabled flags are independent of the selected device id: disabling a class
// chooses nil at the transport while remembering the last selected id, and
// re-enabling restores that id without the caller having to remember it.
//
// Video selections with a virtual background attach an effects.TransformDevice
// in front of the raw camera before the transport sees it. While a meeting is
// active, video changes also (re)start the local video tile; while only
// previewing, they restart the preview surface instead so nothing becomes
// network-visible early.
//
// Transport failures surface as *SelectionError and leave the stored
// selection unchanged — there is no partial commit to retry from.
package devices
