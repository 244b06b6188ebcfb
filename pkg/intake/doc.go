// Package intake collects candidate WiFi credentials from the channels a
// nearby phone can reach while the device hosts its setup access point.
//
// Every channel implements Intake. Start opens one activation window and
// returns a stream that carries at most one accepted Candidate, possibly
// preceded by error results (for example ErrNoCredentialsFound when a paired
// phone offered nothing usable). The stream is closed once the candidate has
// been delivered or Stop is called; a new window needs a new Start.
//
// Channels:
//
//   - WebFormIntake: HTTP form served on the access point gateway
//   - BluetoothIntake: credentials pulled from phones that pair over Bluetooth
//   - ConsoleIntake: credentials typed by an operator at the device shell
//
// Intakes validate input before emitting it, so a Candidate always satisfies
// radio.ValidateCredentials.
package intake
